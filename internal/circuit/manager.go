package circuit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default pool policy values. All of them are overridable via options;
// rotation limits in particular are policy parameters, not constants.
const (
	// DefaultMaxCircuits bounds the pool size. Each circuit consumes
	// resources in the Tor daemon, so the pool stays small.
	DefaultMaxCircuits = 8

	// DefaultFailureThreshold is the number of consecutive transport
	// failures after which a circuit is considered dead and rotated.
	DefaultFailureThreshold = 3

	// DefaultMaxCircuitAge rotates circuits on a schedule regardless of
	// health. Long-lived circuits accumulate traffic that can be
	// correlated.
	DefaultMaxCircuitAge = 10 * time.Minute

	// DefaultMaxCircuitUses rotates circuits after a number of fetches
	// for the same correlation-resistance reason as the age limit.
	DefaultMaxCircuitUses = 50

	// DefaultAcquireTimeout bounds how long Acquire blocks waiting for a
	// circuit before returning ErrNoCircuitAvailable.
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultEscalateAfter is how long pool-wide build failures are
	// tolerated before Acquire escalates to ErrAnonymityUnavailable.
	DefaultEscalateAfter = 2 * time.Minute

	// teardownTimeout bounds asynchronous circuit teardown calls.
	teardownTimeout = 10 * time.Second

	// buildRetryDelay is how long Acquire waiters pause after a failed
	// build before trying again.
	buildRetryDelay = 250 * time.Millisecond
)

// Stats are cumulative pool counters, safe to read after Close.
type Stats struct {
	// Built is the number of circuits successfully built.
	Built int

	// BuildFailures is the number of failed build attempts.
	BuildFailures int

	// RotatedOnFailure is the number of circuits rotated because they
	// crossed the failure threshold.
	RotatedOnFailure int

	// RotatedOnSchedule is the number of circuits rotated for age or use
	// limits.
	RotatedOnSchedule int
}

// Manager owns a bounded pool of circuits built through a Channel.
//
// Invariant: a circuit is Leased to at most one caller at a time.
// Acquire hands out exclusive leases; Release (or Rotate) is the only way
// back. Every circuit handed out must be returned on every exit path.
type Manager struct {
	channel Channel
	logger  *slog.Logger

	maxCircuits      int
	failureThreshold int
	maxAge           time.Duration
	maxUses          int
	acquireTimeout   time.Duration
	escalateAfter    time.Duration

	// mu guards everything below. cond wakes Acquire waiters when a
	// circuit becomes Idle, a build finishes, or the manager closes.
	mu       sync.Mutex
	cond     *sync.Cond
	circuits map[string]*Circuit
	building int
	closed   bool

	// failingSince is the start of the current pool-wide build failure
	// streak; zero while builds are succeeding.
	failingSince time.Time

	stats Stats
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxCircuits sets the maximum pool size.
func WithMaxCircuits(n int) Option {
	return func(m *Manager) { m.maxCircuits = n }
}

// WithFailureThreshold sets the consecutive-failure count that forces a
// circuit out of the pool.
func WithFailureThreshold(n int) Option {
	return func(m *Manager) { m.failureThreshold = n }
}

// WithMaxCircuitAge sets the scheduled-rotation age limit.
func WithMaxCircuitAge(d time.Duration) Option {
	return func(m *Manager) { m.maxAge = d }
}

// WithMaxCircuitUses sets the scheduled-rotation use limit.
func WithMaxCircuitUses(n int) Option {
	return func(m *Manager) { m.maxUses = n }
}

// WithAcquireTimeout sets how long Acquire blocks before giving up.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Manager) { m.acquireTimeout = d }
}

// WithEscalateAfter sets the pool-wide build failure window after which
// Acquire returns ErrAnonymityUnavailable instead of
// ErrNoCircuitAvailable.
func WithEscalateAfter(d time.Duration) Option {
	return func(m *Manager) { m.escalateAfter = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a circuit pool over the given control channel.
// No circuits are built until the first Acquire.
func NewManager(channel Channel, opts ...Option) *Manager {
	m := &Manager{
		channel:          channel,
		maxCircuits:      DefaultMaxCircuits,
		failureThreshold: DefaultFailureThreshold,
		maxAge:           DefaultMaxCircuitAge,
		maxUses:          DefaultMaxCircuitUses,
		acquireTimeout:   DefaultAcquireTimeout,
		escalateAfter:    DefaultEscalateAfter,
		circuits:         make(map[string]*Circuit),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	m.cond = sync.NewCond(&m.mu)
	return m
}

// Acquire leases a circuit, blocking until an idle one exists or the pool
// has room for a new build, bounded by the acquire timeout and ctx.
//
// Returns ErrNoCircuitAvailable when the timeout expires,
// ErrAnonymityUnavailable when builds have been failing pool-wide past
// the escalation window, and ErrManagerClosed after Close.
func (m *Manager) Acquire(ctx context.Context) (*Circuit, error) {
	deadline := time.Now().Add(m.acquireTimeout)

	// Both the context and the deadline must wake cond waiters, since
	// sync.Cond has no timed wait.
	stopCtxWatch := context.AfterFunc(ctx, func() { m.cond.Broadcast() })
	defer stopCtxWatch()
	timer := time.AfterFunc(m.acquireTimeout, func() { m.cond.Broadcast() })
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.closed {
			return nil, ErrManagerClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.escalatedLocked() {
			return nil, ErrAnonymityUnavailable
		}

		if c := m.idleLocked(); c != nil {
			c.state = StateLeased
			return c, nil
		}

		if len(m.circuits)+m.building < m.maxCircuits {
			c, err := m.buildLocked(ctx, deadline)
			if err == nil {
				return c, nil
			}
			// Build failed; fall through to the timeout check and wait
			// for either capacity or the escalation window.
		}

		if time.Now().After(deadline) {
			return nil, ErrNoCircuitAvailable
		}

		m.cond.Wait()
	}
}

// idleLocked returns an idle circuit, or nil. Callers hold mu.
func (m *Manager) idleLocked() *Circuit {
	for _, c := range m.circuits {
		if c.state == StateIdle {
			return c
		}
	}
	return nil
}

// escalatedLocked reports whether pool-wide build failures have lasted
// past the escalation window with no live circuit left to lean on.
func (m *Manager) escalatedLocked() bool {
	return len(m.circuits) == 0 &&
		!m.failingSince.IsZero() &&
		time.Since(m.failingSince) > m.escalateAfter
}

// buildLocked builds one circuit through the channel, releasing mu for
// the duration of the build. On success the circuit is added to the pool
// already Leased to the caller.
func (m *Manager) buildLocked(ctx context.Context, deadline time.Time) (*Circuit, error) {
	m.building++
	m.mu.Unlock()

	buildCtx, cancel := context.WithDeadline(ctx, deadline)
	handle, err := m.channel.Build(buildCtx)
	cancel()

	m.mu.Lock()
	m.building--
	defer m.cond.Broadcast()

	if err != nil {
		m.stats.BuildFailures++
		if m.failingSince.IsZero() {
			m.failingSince = time.Now()
		}
		// Wake waiters again after a pause so they retry the build
		// instead of sleeping until their acquire deadline.
		time.AfterFunc(buildRetryDelay, m.cond.Broadcast)
		m.logger.Warn("circuit build failed", "error", err)
		return nil, err
	}

	m.stats.Built++
	m.failingSince = time.Time{}

	c := &Circuit{
		id:        handle.ID(),
		handle:    handle,
		state:     StateLeased,
		createdAt: time.Now(),
	}

	if m.closed {
		// Close raced with the build; don't hand out a lease.
		m.teardownAsync(handle)
		return nil, ErrManagerClosed
	}

	m.circuits[c.id] = c
	m.logger.Debug("circuit built", "circuit", c.id, "pool", len(m.circuits))
	return c, nil
}

// Release returns a leased circuit to the pool.
//
// On success the circuit becomes Idle again unless it crossed its age or
// use limit, in which case it is rotated. On failure the failure count
// grows; crossing the threshold rotates the circuit.
func (m *Manager) Release(c *Circuit, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.state != StateLeased {
		return ErrNotLeased
	}

	if m.closed {
		c.state = StateDead
		delete(m.circuits, c.id)
		m.teardownAsync(c.handle)
		return nil
	}

	switch outcome {
	case OutcomeSuccess:
		c.failureCount = 0
		c.useCount++
		if m.dueForRotationLocked(c) {
			m.stats.RotatedOnSchedule++
			m.rotateLocked(c, "schedule")
			return nil
		}
	case OutcomeFailure:
		c.failureCount++
		if c.failureCount >= m.failureThreshold {
			c.state = StateDead
			m.stats.RotatedOnFailure++
			m.rotateLocked(c, "failure threshold")
			return nil
		}
	}

	c.state = StateIdle
	m.cond.Broadcast()
	return nil
}

// dueForRotationLocked checks the scheduled-rotation policy.
func (m *Manager) dueForRotationLocked(c *Circuit) bool {
	if m.maxAge > 0 && time.Since(c.createdAt) >= m.maxAge {
		return true
	}
	if m.maxUses > 0 && c.useCount >= m.maxUses {
		return true
	}
	return false
}

// Rotate forcibly tears down a leased circuit and schedules an
// asynchronous replacement. Exposed for the orchestrator, which rotates
// instead of releasing when a fetch outcome implicates the circuit
// (e.g., a suspected block).
func (m *Manager) Rotate(c *Circuit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.state != StateLeased {
		return ErrNotLeased
	}
	m.stats.RotatedOnFailure++
	m.rotateLocked(c, "caller request")
	return nil
}

// rotateLocked removes the circuit from the pool, tears it down in the
// background, and kicks off an asynchronous replacement build so pool
// capacity recovers without blocking the releasing caller.
func (m *Manager) rotateLocked(c *Circuit, reason string) {
	c.state = StateRotating
	delete(m.circuits, c.id)
	m.logger.Debug("rotating circuit", "circuit", c.id, "reason", reason)

	m.teardownAsync(c.handle)
	m.replaceAsync()
	m.cond.Broadcast()
}

// teardownAsync destroys a circuit handle in the background.
// Teardown errors are logged and dropped: the handle is abandoned
// regardless, and the Tor daemon reaps orphaned circuits on its own.
func (m *Manager) teardownAsync(handle Handle) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := m.channel.Teardown(ctx, handle); err != nil {
			m.logger.Warn("circuit teardown failed", "circuit", handle.ID(), "error", err)
		}
	}()
}

// replaceAsync builds a replacement circuit in the background if the pool
// has room for it. The replacement arrives Idle.
func (m *Manager) replaceAsync() {
	if m.closed || len(m.circuits)+m.building >= m.maxCircuits {
		return
	}
	m.building++

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.acquireTimeout)
		defer cancel()
		handle, err := m.channel.Build(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		m.building--
		defer m.cond.Broadcast()

		if err != nil {
			m.stats.BuildFailures++
			if m.failingSince.IsZero() {
				m.failingSince = time.Now()
			}
			m.logger.Warn("replacement circuit build failed", "error", err)
			return
		}

		m.stats.Built++
		m.failingSince = time.Time{}

		if m.closed {
			m.teardownAsync(handle)
			return
		}

		c := &Circuit{
			id:        handle.ID(),
			handle:    handle,
			state:     StateIdle,
			createdAt: time.Now(),
		}
		m.circuits[c.id] = c
	}()
}

// PoolSize returns the current number of circuits in the pool.
func (m *Manager) PoolSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.circuits)
}

// Stats returns a snapshot of the cumulative pool counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Close shuts the pool down: pending Acquire calls fail with
// ErrManagerClosed, idle circuits are torn down immediately, and leased
// circuits are torn down as they are released.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	for id, c := range m.circuits {
		if c.state == StateIdle {
			c.state = StateDead
			delete(m.circuits, id)
			m.teardownAsync(c.handle)
		}
	}

	m.cond.Broadcast()
}
