package circuit

import (
	"context"
	"net/http"
	"time"
)

// State is the lifecycle state of a circuit.
type State int

const (
	// StateIdle means the circuit is built and available for lease.
	StateIdle State = iota

	// StateLeased means exactly one caller holds the circuit for a fetch.
	StateLeased

	// StateRotating means the circuit is being torn down and replaced.
	StateRotating

	// StateDead means the circuit crossed its failure threshold and is no
	// longer usable.
	StateDead
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLeased:
		return "leased"
	case StateRotating:
		return "rotating"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Outcome reports how a fetch over a leased circuit went. Release uses it
// to decide between returning the circuit to the pool and rotating it.
type Outcome int

const (
	// OutcomeSuccess means the fetch completed, even with a non-2xx
	// status. The circuit works.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means the fetch failed at the transport level
	// (timeout, connection error). Failures count against the circuit.
	OutcomeFailure
)

// Handle is the capability a built circuit exposes to its lease holder.
// The concrete implementation lives in the tor package; tests use fakes
// backed by httptest servers.
type Handle interface {
	// ID identifies the underlying circuit for logging.
	ID() string

	// HTTPClient returns an HTTP client whose requests ride this circuit.
	HTTPClient() *http.Client
}

// Channel is the abstract control channel to the anonymity network.
// The manager tolerates Build failing temporarily; persistent failure
// across the pool escalates to ErrAnonymityUnavailable.
type Channel interface {
	// Build creates a new circuit and returns its handle.
	Build(ctx context.Context) (Handle, error)

	// Teardown destroys a circuit. Errors are logged, not retried: the
	// handle is abandoned either way.
	Teardown(ctx context.Context, h Handle) error
}

// Circuit is one pooled anonymity-network circuit.
//
// All fields are guarded by the owning Manager's mutex. Lease holders
// only use the immutable handle; they never touch circuit state
// directly.
type Circuit struct {
	// id identifies the circuit in logs and matches Handle.ID().
	id string

	// handle is the built circuit capability.
	handle Handle

	// state is the lifecycle state, transitions owned by the Manager.
	state State

	// createdAt is when the circuit was built, for age-based rotation.
	createdAt time.Time

	// useCount is the number of completed leases, for use-based rotation.
	useCount int

	// failureCount counts consecutive transport failures. Reset on
	// success; crossing the threshold forces rotation.
	failureCount int
}

// ID returns the circuit identifier.
func (c *Circuit) ID() string {
	return c.id
}

// HTTPClient returns the HTTP client bound to this circuit.
// Valid only while the caller holds the lease.
func (c *Circuit) HTTPClient() *http.Client {
	return c.handle.HTTPClient()
}
