package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoSeeds is returned when neither a seed file nor inline seed URLs
	// are specified. A crawl needs at least one starting point.
	ErrNoSeeds = errors.New("no seeds specified: provide seed URLs or use --seeds")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	// A timeout of zero or negative would cause immediate fetch failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	// Zero workers would mean no fetching at all.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidRetryBudget is returned when the retry budget is not
	// positive. Every page needs at least one fetch attempt.
	ErrInvalidRetryBudget = errors.New("invalid retry budget: must be positive")

	// ErrInvalidMaxDepth is returned when the crawl depth is negative.
	// Depth 0 is valid and means seeds only.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidFrontierCapacity is returned when the frontier capacity is
	// not positive. The queue needs room for at least the seeds.
	ErrInvalidFrontierCapacity = errors.New("invalid frontier capacity: must be positive")

	// ErrInvalidMaxCircuits is returned when the circuit pool size is not
	// positive. The crawler cannot fetch without at least one circuit.
	ErrInvalidMaxCircuits = errors.New("invalid max circuits: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// A negative delay is invalid; use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
