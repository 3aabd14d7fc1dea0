package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen based on typical Tor network characteristics.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Port 9050 is the default for the Tor daemon's SOCKS port.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout is set to 60 seconds because Tor connections are
	// inherently slower than clearnet connections due to the multiple relay
	// hops. A shorter timeout would mark many slow hidden services as dead.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxDepth is the number of link hops from a seed the crawl
	// follows. Three hops covers the neighborhood of a seed without the
	// frontier exploding on link-dense sites.
	DefaultMaxDepth = 3

	// DefaultWorkers is the number of concurrent fetch workers.
	// Higher values increase throughput but multiply pressure on the local
	// Tor daemon, which has its own stream limits.
	DefaultWorkers = 4

	// DefaultRetryBudget is the maximum number of fetch attempts per page.
	// Onion services flap, so a single attempt loses too many reachable
	// pages; four attempts recovers most transient failures.
	DefaultRetryBudget = 4

	// DefaultRetryBackoff is the base delay before a failed page is
	// retried. The delay doubles per attempt.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultFrontierCapacity bounds the number of queued targets.
	DefaultFrontierCapacity = 10000

	// DefaultMaxCircuits is the size of the circuit pool.
	DefaultMaxCircuits = 8

	// AppName is the application name used for XDG directory paths.
	AppName = "onionmap"

	// DefaultCrawlDelay is the delay between requests during crawling.
	// This is a politeness setting to avoid overwhelming hidden services.
	// 1 second is conservative and respectful of server resources.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap. 3 minutes is typically sufficient for most
	// network conditions, but may need to be increased for slow connections.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for a crawl.
// This struct is designed to be populated from CLI flags and an optional
// config file, then passed through the application via dependency
// injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, CircuitConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// TorProxyAddress is the address of the Tor SOCKS5 proxy in "host:port"
	// format. All network traffic goes through this proxy; the crawler never
	// touches the clearnet directly.
	TorProxyAddress string

	// Timeout is the per-fetch timeout covering connection, response, and
	// body read. Tor's latency means this should be generous.
	Timeout time.Duration

	// MaxDepth is the maximum link distance from a seed. Depth 0 means
	// only fetch the seeds themselves.
	MaxDepth int

	// Workers is the number of concurrent fetch workers.
	Workers int

	// RetryBudget is the maximum number of fetch attempts per page.
	RetryBudget int

	// RetryBackoff is the base delay before a failed page is retried.
	RetryBackoff time.Duration

	// FrontierCapacity bounds the number of queued targets. When the
	// frontier is full, low-priority discoveries are dropped.
	FrontierCapacity int

	// MaxCircuits is the size of the Tor circuit pool.
	MaxCircuits int

	// SeedFile is the path to the seed list (plain text or YAML).
	SeedFile string

	// Seeds are additional seed URLs given directly on the command line.
	Seeds []string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only info and above are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .onionmap in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// JSONReport enables JSON summary output instead of human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown summary output instead of
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the crawl summary.
	// When set, the summary is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// UseExternalTor disables the embedded Tor daemon and uses an external
	// proxy at TorProxyAddress instead. The embedded daemon takes 1-3
	// minutes to bootstrap on first start.
	UseExternalTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to start and bootstrap. Only used when UseExternalTor is false.
	TorStartupTimeout time.Duration

	// DBDir is the directory holding the SQLite crawl database.
	// Defaults to the XDG data directory (~/.local/share/onionmap on Linux).
	DBDir string

	// CrawlDelay is the delay between HTTP requests during crawling.
	// This is a "politeness" setting to avoid overwhelming hidden services.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	// When empty, a common browser User-Agent is used so crawler traffic
	// blends in with ordinary visitors.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64

	// AllowClearnet permits following links to non-onion hosts.
	// Off by default: the crawl stays inside the onion space.
	AllowClearnet bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, worker
// count). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:   DefaultTorProxyAddress,
		Timeout:           DefaultTimeout,
		MaxDepth:          DefaultMaxDepth,
		Workers:           DefaultWorkers,
		RetryBudget:       DefaultRetryBudget,
		RetryBackoff:      DefaultRetryBackoff,
		FrontierCapacity:  DefaultFrontierCapacity,
		MaxCircuits:       DefaultMaxCircuits,
		TorStartupTimeout: DefaultTorStartupTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		MaxBodySize:       DefaultMaxBodySize,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for the crawl database.
// On Linux: ~/.local/share/onionmap
// On macOS: ~/Library/Application Support/onionmap
// On Windows: %LOCALAPPDATA%\onionmap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
// On Linux: ~/.config/onionmap
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all
// errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.SeedFile == "" && len(c.Seeds) == 0 {
		return ErrNoSeeds
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.RetryBudget <= 0 {
		return ErrInvalidRetryBudget
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.FrontierCapacity <= 0 {
		return ErrInvalidFrontierCapacity
	}

	if c.MaxCircuits <= 0 {
		return ErrInvalidMaxCircuits
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// CrawlDelay must be non-negative; use 0 for no delay
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
