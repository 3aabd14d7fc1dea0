package model

import (
	"errors"
	"time"
)

// errMissingHost is returned by NormalizeURL for URLs without a host part.
var errMissingHost = errors.New("url has no host")

// FetchStatus classifies the outcome of a single fetch attempt.
// The orchestrator maps statuses to retry/terminal decisions; the fetcher
// itself never retries.
type FetchStatus int

const (
	// StatusOk means the page was retrieved and is usable.
	// A truncated-but-parseable body still counts as Ok.
	StatusOk FetchStatus = iota

	// StatusTimeout means the fetch exceeded its wall-clock budget.
	// Timeouts are common on Tor and are retried by the orchestrator.
	StatusTimeout

	// StatusBlocked means the content was rejected: oversize beyond the
	// point of being parseable, an undecodable body, or an HTTP status
	// that indicates the service refused us (403, 429).
	StatusBlocked

	// StatusError covers transport failures and server errors that are
	// not timeouts: connection refused, SOCKS failures, 5xx responses.
	StatusError
)

// String returns the status name for logging.
func (s FetchStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusBlocked:
		return "blocked"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Retryable reports whether the orchestrator should consider another
// attempt for this status. Blocked is terminal: the service told us no,
// and asking again through a fresh circuit rarely changes that.
func (s FetchStatus) Retryable() bool {
	return s == StatusTimeout || s == StatusError
}

// FetchResult is the outcome of fetching one target through one circuit.
// It is produced by the fetcher and consumed exactly once by the
// orchestrator; nothing retains it afterwards.
type FetchResult struct {
	// Target is the target this result belongs to.
	Target Target

	// Status classifies the outcome.
	Status FetchStatus

	// HTTPStatus is the HTTP response code, 0 if no response was received.
	HTTPStatus int

	// Body is the (possibly truncated) response body. Nil unless Status
	// is Ok.
	Body []byte

	// ContentHash is the SHA-256 hex digest of Body. Empty when Body is nil.
	ContentHash string

	// ContentType is the response Content-Type header value.
	ContentType string

	// Title is the page title, when the body was parseable HTML.
	Title string

	// Links are the outbound links extracted from the body, in document
	// order, normalized. The same body always yields the same sequence.
	Links []string

	// Truncated is set when the body hit the byte cap but remained
	// parseable, so the result is still Ok.
	Truncated bool

	// Elapsed is the wall-clock duration of the fetch.
	Elapsed time.Duration

	// Err carries the transport error for Timeout/Error statuses.
	Err error
}
