package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onionmap/onionmap/internal/circuit"
	"github.com/onionmap/onionmap/internal/fetch"
	"github.com/onionmap/onionmap/internal/frontier"
	"github.com/onionmap/onionmap/internal/model"
	"github.com/onionmap/onionmap/internal/store"
)

// Default orchestrator knobs.
//
// Design decision: the retry budget counts dispatches, not re-queues.
// A target that times out on every attempt is fetched exactly
// DefaultRetryBudget times before it is marked failed.
const (
	// DefaultWorkers is the number of concurrent fetch workers.
	DefaultWorkers = 4

	// DefaultRetryBudget is the maximum number of fetch attempts per target.
	DefaultRetryBudget = 4

	// DefaultRetryBackoff is the base delay before a transient failure is
	// re-queued. The actual delay doubles per attempt.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultMaxDepth is how many link hops away from a seed the crawl
	// follows. Links discovered beyond this depth are dropped.
	DefaultMaxDepth = 3

	// DefaultCrawlDelay is the politeness pause a worker takes after each
	// fetch before picking up the next target.
	DefaultCrawlDelay = 1 * time.Second

	// circuitRetryDelay is how long a worker waits before re-queueing a
	// target when no circuit could be leased in time.
	circuitRetryDelay = 5 * time.Second

	// idlePollInterval is how often the dispatcher re-checks an empty
	// frontier while targets are still in flight.
	idlePollInterval = 50 * time.Millisecond
)

// targetState tracks where a target is in its per-target lifecycle.
// Transitions are strictly sequential for a given target; states of
// distinct targets are unrelated.
type targetState int

const (
	stateQueued targetState = iota
	stateDispatched
	stateFetched
	stateParsed
	statePersisted
	stateFailed
)

// String returns the lowercase state name for logging.
func (s targetState) String() string {
	switch s {
	case stateQueued:
		return "queued"
	case stateDispatched:
		return "dispatched"
	case stateFetched:
		return "fetched"
	case stateParsed:
		return "parsed"
	case statePersisted:
		return "persisted"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of crawl counters. All counters are cumulative
// for one Run.
type Stats struct {
	// PagesCrawled counts targets that reached the persisted state.
	PagesCrawled int

	// PagesFailed counts targets that exhausted their retry budget or hit
	// a terminal fetch status.
	PagesFailed int

	// Retries counts re-queues after transient failures.
	Retries int

	// URLDuplicates counts discovered links skipped because their URL was
	// already crawled or queued in a previous run or this one.
	URLDuplicates int

	// ContentDuplicates counts pages whose body hash was already seen.
	// Their links are not followed.
	ContentDuplicates int

	// DepthLimited counts discovered links dropped for exceeding the
	// maximum crawl depth.
	DepthLimited int

	// SelfLinks counts page links pointing back at the page itself.
	// They produce no edge.
	SelfLinks int

	// EdgesQueued counts edges that could not be written and were queued
	// for replay instead.
	EdgesQueued int

	// CircuitWaits counts dispatches delayed because no circuit was
	// available within the lease timeout.
	CircuitWaits int
}

// Engine drives a crawl: it leases circuits, fetches targets, persists
// pages and edges, and feeds discovered links back into the frontier.
type Engine struct {
	frontier *frontier.Frontier
	db       *store.DB
	circuits *circuit.Manager
	fetcher  *fetch.Fetcher

	workers      int
	retryBudget  int
	retryBackoff time.Duration
	maxDepth     int
	crawlDelay   time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	stats    Stats
	inflight int
	fatalErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent fetch workers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRetryBudget sets the maximum number of fetch attempts per target.
func WithRetryBudget(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.retryBudget = n
		}
	}
}

// WithRetryBackoff sets the base delay before a transient failure is
// re-queued.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryBackoff = d
		}
	}
}

// WithMaxDepth sets how many link hops from a seed the crawl follows.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxDepth = n
		}
	}
}

// WithCrawlDelay sets the politeness pause after each fetch.
// Zero disables the pause, which is what the tests want.
func WithCrawlDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.crawlDelay = d
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a crawl engine over the given frontier, store, circuit
// pool, and fetcher.
func New(f *frontier.Frontier, db *store.DB, circuits *circuit.Manager, fetcher *fetch.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		frontier:     f,
		db:           db,
		circuits:     circuits,
		fetcher:      fetcher,
		workers:      DefaultWorkers,
		retryBudget:  DefaultRetryBudget,
		retryBackoff: DefaultRetryBackoff,
		maxDepth:     DefaultMaxDepth,
		crawlDelay:   DefaultCrawlDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run crawls from the given seeds until the frontier drains, the
// context is cancelled, or a fatal condition aborts the crawl.
//
// Per-target failures are counted and never returned. Run returns
// circuit.ErrAnonymityUnavailable when the circuit pool cannot build
// any circuit for a sustained window, store.ErrStorageUnavailable when
// graph writes fail beyond retries and replay queueing, and ctx.Err()
// after a cancellation once in-flight work has drained. Cancellation
// stops dispatch and retry scheduling only: fetches already holding a
// circuit finish or time out, and their pages are persisted.
func (e *Engine) Run(ctx context.Context, seeds []model.Target) error {
	for _, seed := range seeds {
		e.enqueue(ctx, seed)
	}

	g := &errgroup.Group{}
	g.SetLimit(e.workers)

	for {
		if err := e.fatal(); err != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}

		target, ok := e.frontier.Pop()
		if !ok {
			if e.inflightCount() == 0 {
				break
			}
			// Targets are in flight and may still discover links or
			// schedule retries. Poll until they settle.
			select {
			case <-time.After(idlePollInterval):
			case <-ctx.Done():
			}
			continue
		}

		e.addInflight(1)
		g.Go(func() error {
			defer e.addInflight(-1)
			e.process(ctx, target)
			return nil
		})
	}

	// Workers persist their results through a detached context, so a
	// cancelled crawl still flushes parsed-but-unpersisted pages.
	_ = g.Wait()

	if err := e.fatal(); err != nil {
		return err
	}
	return ctx.Err()
}

// process runs one target through the state machine. It never returns
// an error: per-target failures are counted, fatal conditions are
// recorded for Run to pick up.
func (e *Engine) process(ctx context.Context, target model.Target) {
	target.Attempts++
	e.logState(target, stateDispatched)

	c, err := e.circuits.Acquire(ctx)
	if err != nil {
		e.handleAcquireFailure(ctx, target, err)
		return
	}

	// The stop signal must not abort a fetch that already holds a
	// circuit. The fetch runs under a stop-detached context bounded by
	// the fetcher's own timeout, so shutdown lets it finish or time out
	// and its result is still persisted.
	result := e.fetcher.Fetch(context.WithoutCancel(ctx), target, c)
	e.logState(target, stateFetched)

	if err := e.circuits.Release(c, releaseOutcome(result)); err != nil {
		e.logger.Warn("circuit release failed", "circuit", c.ID(), "error", err)
	}

	if result.Status == model.StatusOk {
		// Persistence survives crawl cancellation so fetched pages are
		// never lost at shutdown.
		e.persist(context.WithoutCancel(ctx), result)
	} else {
		e.handleFetchFailure(ctx, target, result)
	}

	if e.crawlDelay > 0 {
		select {
		case <-time.After(e.crawlDelay):
		case <-ctx.Done():
		}
	}
}

// releaseOutcome maps a fetch result to a circuit health signal. Any
// HTTP response, including errors and blocks, proves the circuit
// carried traffic. Only transport-level failures count against it.
func releaseOutcome(result model.FetchResult) circuit.Outcome {
	if result.Status == model.StatusOk || result.HTTPStatus != 0 {
		return circuit.OutcomeSuccess
	}
	return circuit.OutcomeFailure
}

// handleAcquireFailure deals with a failed circuit lease. Pool
// exhaustion is transient: the target goes back to the frontier after a
// pause. Sustained build failure aborts the crawl.
func (e *Engine) handleAcquireFailure(ctx context.Context, target model.Target, err error) {
	switch {
	case errors.Is(err, circuit.ErrAnonymityUnavailable):
		e.setFatal(err)
	case errors.Is(err, circuit.ErrNoCircuitAvailable):
		e.mu.Lock()
		e.stats.CircuitWaits++
		e.mu.Unlock()
		e.logger.Warn("no circuit available, re-queueing", "url", target.URL, "attempt", target.Attempts)
		// The attempt never reached the network, so it does not count
		// against the retry budget.
		target.Attempts--
		e.scheduleRetry(ctx, target, circuitRetryDelay)
	case ctx.Err() != nil:
		// Shutdown. The target is simply dropped.
	default:
		e.logger.Warn("circuit acquire failed", "url", target.URL, "error", err)
		e.failTarget(target, err)
	}
}

// handleFetchFailure applies the retry policy to a non-Ok fetch result.
func (e *Engine) handleFetchFailure(ctx context.Context, target model.Target, result model.FetchResult) {
	if result.Status.Retryable() && target.Attempts < e.retryBudget {
		if ctx.Err() != nil {
			// Stopping. A retry timer would fire after the dispatcher has
			// exited, so the target is dropped like queued ones.
			e.logger.Debug("retry skipped on shutdown", "url", target.URL)
			return
		}

		e.mu.Lock()
		e.stats.Retries++
		e.mu.Unlock()

		delay := e.retryBackoff << (target.Attempts - 1)
		e.logger.Info("retrying target",
			"url", target.URL,
			"status", result.Status.String(),
			"attempt", target.Attempts,
			"delay", delay)
		e.scheduleRetry(ctx, target, delay)
		return
	}

	e.failTarget(target, result.Err)
}

// scheduleRetry re-queues a target after a delay. The pending timer
// counts as in-flight work so the dispatcher does not declare the crawl
// finished while retries are waiting. A timer that fires after the stop
// signal discards its target instead of pushing into a frontier nobody
// drains.
func (e *Engine) scheduleRetry(ctx context.Context, target model.Target, delay time.Duration) {
	e.addInflight(1)
	time.AfterFunc(delay, func() {
		defer e.addInflight(-1)
		if ctx.Err() != nil {
			return
		}
		if e.frontier.Push(target) == frontier.Dropped {
			e.failTarget(target, errors.New("frontier full on retry"))
		}
	})
}

// failTarget records a terminal failure for a target.
func (e *Engine) failTarget(target model.Target, cause error) {
	e.mu.Lock()
	e.stats.PagesFailed++
	e.mu.Unlock()

	e.logState(target, stateFailed)
	e.logger.Warn("target failed",
		"url", target.URL,
		"depth", target.Depth,
		"attempts", target.Attempts,
		"error", cause)
}

// persist writes a successful fetch to the graph and feeds discovered
// links back into the frontier. The ctx here is detached from crawl
// cancellation.
func (e *Engine) persist(ctx context.Context, result model.FetchResult) {
	target := result.Target
	e.logState(target, stateParsed)

	newContent, err := e.db.CheckAndMarkContent(ctx, result.ContentHash)
	if err != nil {
		e.storageFailure(target, err)
		return
	}

	node := store.Node{
		URL:         target.URL,
		Host:        model.Host(target.URL),
		Title:       result.Title,
		ContentType: result.ContentType,
		HTTPStatus:  result.HTTPStatus,
		ContentHash: result.ContentHash,
	}
	if err := e.db.UpsertNode(ctx, node); err != nil {
		e.storageFailure(target, err)
		return
	}

	if !newContent {
		// Mirror page. The node is refreshed above but its links are not
		// followed, so content farms do not multiply the frontier.
		e.mu.Lock()
		e.stats.ContentDuplicates++
		e.stats.PagesCrawled++
		e.mu.Unlock()
		e.logState(target, statePersisted)
		return
	}

	for _, link := range result.Links {
		if link == target.URL {
			e.mu.Lock()
			e.stats.SelfLinks++
			e.mu.Unlock()
			continue
		}
		if !e.persistEdge(ctx, target.URL, link) {
			return
		}
		e.enqueue(ctx, model.Target{
			URL:      link,
			Depth:    target.Depth + 1,
			Priority: target.Priority,
			Origin:   target.URL,
		})
	}

	e.mu.Lock()
	e.stats.PagesCrawled++
	e.mu.Unlock()
	e.logState(target, statePersisted)
	e.logger.Info("page persisted",
		"url", target.URL,
		"depth", target.Depth,
		"links", len(result.Links),
		"http_status", result.HTTPStatus)
}

// persistEdge writes one link edge plus a placeholder node for the
// destination. Returns false when the crawl must abort.
func (e *Engine) persistEdge(ctx context.Context, src, dst string) bool {
	if err := e.db.UpsertNode(ctx, store.Node{URL: dst, Host: model.Host(dst)}); err != nil {
		e.storageFailure(model.Target{URL: src}, err)
		return false
	}

	err := e.db.UpsertEdge(ctx, src, dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrStorageUnavailable):
		e.setFatal(err)
		return false
	default:
		// The edge landed in the replay queue.
		e.mu.Lock()
		e.stats.EdgesQueued++
		e.mu.Unlock()
		e.logger.Warn("edge queued for replay", "src", src, "dst", dst)
		return true
	}
}

// enqueue pushes a target to the frontier after the depth gate and the
// durable URL-dedup check.
func (e *Engine) enqueue(ctx context.Context, target model.Target) {
	if target.Depth > e.maxDepth {
		e.mu.Lock()
		e.stats.DepthLimited++
		e.mu.Unlock()
		return
	}

	fresh, err := e.db.CheckAndMarkURL(ctx, model.URLFingerprint(target.URL))
	if err != nil {
		e.storageFailure(target, err)
		return
	}
	if !fresh {
		e.mu.Lock()
		e.stats.URLDuplicates++
		e.mu.Unlock()
		return
	}

	switch e.frontier.Push(target) {
	case frontier.Pushed:
		e.logState(target, stateQueued)
	case frontier.Dropped:
		e.logger.Warn("frontier full, target dropped", "url", target.URL, "depth", target.Depth)
	case frontier.Duplicate:
		e.mu.Lock()
		e.stats.URLDuplicates++
		e.mu.Unlock()
	}
}

// storageFailure records a store error. Exhausted-retry errors abort
// the crawl; anything else counts as a per-target failure.
func (e *Engine) storageFailure(target model.Target, err error) {
	if errors.Is(err, store.ErrStorageUnavailable) {
		e.setFatal(err)
		return
	}
	e.failTarget(target, fmt.Errorf("store write: %w", err))
}

// setFatal records the first fatal error. The dispatcher stops handing
// out work once one is set.
func (e *Engine) setFatal(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fatalErr == nil {
		e.fatalErr = err
		e.logger.Error("crawl aborting", "error", err)
	}
}

// fatal returns the recorded fatal error, if any.
func (e *Engine) fatal() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatalErr
}

func (e *Engine) addInflight(delta int) {
	e.mu.Lock()
	e.inflight += delta
	e.mu.Unlock()
}

func (e *Engine) inflightCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight
}

// Stats returns a snapshot of the crawl counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) logState(target model.Target, state targetState) {
	e.logger.Debug("target state",
		"url", target.URL,
		"state", state.String(),
		"depth", target.Depth,
		"attempt", target.Attempts)
}
