package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Node is a page in the link graph. A node exists as soon as the page is
// discovered as a link destination; fields beyond URL and Host are
// filled in once the page itself is crawled.
type Node struct {
	// URL is the normalized page URL, the node identity.
	URL string

	// Host is the lowercased host, kept denormalized for host-level
	// queries.
	Host string

	// Title is the page title, empty until crawled.
	Title string

	// ContentType is the response MIME type, empty until crawled.
	ContentType string

	// HTTPStatus is the response status code, 0 until crawled.
	HTTPStatus int

	// ContentHash is the SHA-256 hex digest of the page body.
	ContentHash string

	// FirstSeen is when the node first entered the graph.
	FirstSeen time.Time

	// LastSeen is the most recent time the node was crawled or
	// rediscovered. Monotonic: upserts only move it forward.
	LastSeen time.Time
}

// Edge is a directed link between two nodes.
type Edge struct {
	// Src and Dst are the normalized URLs of the endpoints.
	Src string
	Dst string

	// FirstSeen is when the edge was first recorded.
	FirstSeen time.Time

	// LastSeen is the most recent rediscovery.
	LastSeen time.Time

	// Occurrences counts how many times the edge was upserted.
	Occurrences int
}

// UpsertNode inserts or refreshes a node.
//
// Idempotent: repeating the call with the same URL updates last_seen and
// fills in crawl metadata without creating a second row. Empty incoming
// fields never clobber previously stored values, so a bare
// link-destination upsert doesn't erase data from an earlier full crawl.
func (s *DB) UpsertNode(ctx context.Context, node Node) error {
	query := `
	INSERT INTO nodes (url, host, title, content_type, http_status, content_hash)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (url) DO UPDATE SET
		title = CASE WHEN excluded.title != '' THEN excluded.title ELSE nodes.title END,
		content_type = CASE WHEN excluded.content_type != '' THEN excluded.content_type ELSE nodes.content_type END,
		http_status = CASE WHEN excluded.http_status != 0 THEN excluded.http_status ELSE nodes.http_status END,
		content_hash = CASE WHEN excluded.content_hash != '' THEN excluded.content_hash ELSE nodes.content_hash END,
		last_seen = CURRENT_TIMESTAMP
	`

	return s.writeWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			node.URL, node.Host, node.Title, node.ContentType, node.HTTPStatus, node.ContentHash)
		return err
	})
}

// UpsertEdge inserts or refreshes a directed edge.
//
// Idempotent under retries in the exactly-once sense required by the
// graph: N calls yield one row with occurrences N, never N rows. When
// all write attempts fail, the edge is queued in replay_edges instead of
// being dropped; if even that fails, ErrStorageUnavailable is returned
// and the caller must stop persisting.
func (s *DB) UpsertEdge(ctx context.Context, src, dst string) error {
	err := s.writeWithRetry(ctx, func(ctx context.Context) error {
		return s.upsertEdgeOnce(ctx, src, dst)
	})
	if err == nil {
		return nil
	}

	if qErr := s.queueEdgeForReplay(ctx, src, dst); qErr != nil {
		return fmt.Errorf("%w: upsert failed (%v) and replay queue failed: %v",
			ErrStorageUnavailable, err, qErr)
	}
	return fmt.Errorf("edge queued for replay after failed upsert: %w", err)
}

// upsertEdgeOnce performs a single edge upsert attempt.
func (s *DB) upsertEdgeOnce(ctx context.Context, src, dst string) error {
	query := `
	INSERT INTO edges (src, dst)
	VALUES (?, ?)
	ON CONFLICT (src, dst) DO UPDATE SET
		occurrences = occurrences + 1,
		last_seen = CURRENT_TIMESTAMP
	`
	_, err := s.db.ExecContext(ctx, query, src, dst)
	return err
}

// writeWithRetry runs a write with bounded exponential backoff.
// Context cancellation stops the retry loop but not an in-progress
// statement; SQLite statements are short.
func (s *DB) writeWithRetry(ctx context.Context, write func(context.Context) error) error {
	backoff := s.writeBackoff

	var err error
	for attempt := 0; attempt < s.writeAttempts; attempt++ {
		if err = write(ctx); err == nil {
			return nil
		}

		if attempt == s.writeAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return err
}

// queueEdgeForReplay records a failed edge write for a later replay pass.
func (s *DB) queueEdgeForReplay(ctx context.Context, src, dst string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO replay_edges (src, dst) VALUES (?, ?)", src, dst)
	return err
}

// ReplayEdges re-applies queued edge writes and removes the queue rows
// that succeeded. Returns the number of replayed edges.
//
// Replay and the original upsert compose: the edge upsert is idempotent,
// so replaying an edge that somehow also landed the first time only
// bumps its occurrence count, which is the defined meaning of a repeated
// discovery.
func (s *DB) ReplayEdges(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, src, dst FROM replay_edges ORDER BY id")
	if err != nil {
		return 0, fmt.Errorf("failed to read replay queue: %w", err)
	}

	type queued struct {
		id       int64
		src, dst string
	}
	var pending []queued
	for rows.Next() {
		var q queued
		if err := rows.Scan(&q.id, &q.src, &q.dst); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan replay row: %w", err)
		}
		pending = append(pending, q)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("failed to iterate replay queue: %w", err)
	}
	_ = rows.Close()

	replayed := 0
	for _, q := range pending {
		if err := s.upsertEdgeOnce(ctx, q.src, q.dst); err != nil {
			return replayed, fmt.Errorf("replay stopped at edge %s -> %s: %w", q.src, q.dst, err)
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM replay_edges WHERE id = ?", q.id); err != nil {
			return replayed, fmt.Errorf("failed to dequeue replayed edge: %w", err)
		}
		replayed++
	}

	return replayed, nil
}

// PendingReplayCount returns the number of edges waiting for replay.
func (s *DB) PendingReplayCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM replay_edges").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count replay queue: %w", err)
	}
	return count, nil
}

// GetNode retrieves a node by URL. Returns nil when the node does not
// exist.
func (s *DB) GetNode(ctx context.Context, url string) (*Node, error) {
	query := `
	SELECT url, host, title, content_type, http_status, content_hash, first_seen, last_seen
	FROM nodes WHERE url = ?
	`

	var node Node
	var firstSeen, lastSeen string
	err := s.db.QueryRowContext(ctx, query, url).Scan(
		&node.URL, &node.Host, &node.Title, &node.ContentType,
		&node.HTTPStatus, &node.ContentHash, &firstSeen, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	node.FirstSeen = parseTimestamp(firstSeen)
	node.LastSeen = parseTimestamp(lastSeen)
	return &node, nil
}

// GetEdge retrieves an edge by endpoints. Returns nil when the edge does
// not exist.
func (s *DB) GetEdge(ctx context.Context, src, dst string) (*Edge, error) {
	query := `
	SELECT src, dst, first_seen, last_seen, occurrences
	FROM edges WHERE src = ? AND dst = ?
	`

	var edge Edge
	var firstSeen, lastSeen string
	err := s.db.QueryRowContext(ctx, query, src, dst).Scan(
		&edge.Src, &edge.Dst, &firstSeen, &lastSeen, &edge.Occurrences)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	edge.FirstSeen = parseTimestamp(firstSeen)
	edge.LastSeen = parseTimestamp(lastSeen)
	return &edge, nil
}

// NodeCount returns the number of nodes in the graph.
func (s *DB) NodeCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

// EdgeCount returns the number of distinct edges in the graph.
func (s *DB) EdgeCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

// HostCount returns the number of distinct hosts in the graph.
func (s *DB) HostCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT host) FROM nodes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count hosts: %w", err)
	}
	return count, nil
}
