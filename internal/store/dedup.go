package store

import (
	"context"
	"fmt"

	"github.com/onionmap/onionmap/internal/model"
)

// CheckAndMarkURL atomically records a URL fingerprint.
// Returns true when the fingerprint was new, false when it was already
// present.
//
// The check and the mark are one INSERT with conflict handling, never a
// read followed by a write: with concurrent workers racing on the same
// URL, exactly one caller observes "new".
func (s *DB) CheckAndMarkURL(ctx context.Context, digest string) (bool, error) {
	return s.checkAndMark(ctx, model.FingerprintKindURL, digest)
}

// CheckAndMarkContent atomically records a content fingerprint.
// Returns true when the fingerprint was new. See CheckAndMarkURL for the
// atomicity contract.
func (s *DB) CheckAndMarkContent(ctx context.Context, digest string) (bool, error) {
	return s.checkAndMark(ctx, model.FingerprintKindContent, digest)
}

// checkAndMark performs the atomic insert shared by both fingerprint
// kinds.
func (s *DB) checkAndMark(ctx context.Context, kind, digest string) (bool, error) {
	query := `
	INSERT INTO fingerprints (kind, digest)
	VALUES (?, ?)
	ON CONFLICT (kind, digest) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, kind, digest)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s fingerprint: %w", kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected == 1, nil
}

// FingerprintCount returns the number of stored fingerprints of the
// given kind. Used by the post-crawl report.
func (s *DB) FingerprintCount(ctx context.Context, kind string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fingerprints WHERE kind = ?", kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return count, nil
}
