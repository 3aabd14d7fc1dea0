package circuit

import "errors"

// Circuit pool errors.
//
// Design decision: Sentinel errors so the orchestrator can distinguish
// "retry later with backoff" (ErrNoCircuitAvailable) from "abort the
// crawl" (ErrAnonymityUnavailable) with errors.Is.
var (
	// ErrNoCircuitAvailable is returned by Acquire when no circuit could
	// be leased or built within the acquire timeout. This is transient:
	// callers retry at a slower cadence.
	ErrNoCircuitAvailable = errors.New("no circuit available")

	// ErrAnonymityUnavailable is returned when circuit builds have been
	// failing across the whole pool for longer than the escalation
	// window. This is fatal to the crawl: the anonymity layer is down and
	// continuing would either stall forever or tempt a non-anonymous
	// fallback.
	ErrAnonymityUnavailable = errors.New("anonymity layer unavailable: all circuit builds failing")

	// ErrManagerClosed is returned by Acquire after Close has been called.
	ErrManagerClosed = errors.New("circuit manager is closed")

	// ErrNotLeased is returned by Release when the circuit is not in the
	// Leased state. This indicates a double release, which is a caller
	// bug.
	ErrNotLeased = errors.New("circuit is not leased")
)
