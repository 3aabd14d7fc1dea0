package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/onionmap/onionmap/internal/circuit"
	"github.com/onionmap/onionmap/internal/config"
	"github.com/onionmap/onionmap/internal/engine"
	"github.com/onionmap/onionmap/internal/fetch"
	"github.com/onionmap/onionmap/internal/frontier"
	"github.com/onionmap/onionmap/internal/log"
	"github.com/onionmap/onionmap/internal/model"
	"github.com/onionmap/onionmap/internal/report"
	"github.com/onionmap/onionmap/internal/seed"
	"github.com/onionmap/onionmap/internal/store"
	"github.com/onionmap/onionmap/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl Tor hidden services and record their link graph",
		Long: `Crawl fetches pages from Tor hidden services starting at the given seeds,
follows onion links up to a depth limit, and records pages and links as a
graph in a local SQLite database. Repeated crawls are incremental: known
URLs are skipped and re-observed links update the existing graph.

Each fetch uses a circuit from an isolated circuit pool, so no single Tor
circuit links too many requests together.

Examples:
  # Crawl from a single seed
  onionmap crawl http://exampleonion.onion/

  # Crawl from a seed list file (text or YAML)
  onionmap crawl --seeds seeds.txt

  # Use external Tor proxy instead of embedded daemon
  onionmap crawl --external-tor 127.0.0.1:9050 http://exampleonion.onion/

  # Write a Markdown summary to a file
  onionmap crawl --markdown -o report.md --seeds seeds.yaml

Configuration file (.onionmap) example:
  workers: 8
  maxDepth: 2
  crawlDelay: 2s
  seeds:
    - http://exampleonion.onion/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Tor connection flags
	cmd.Flags().StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-fetch timeout covering connect, response, and body read")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from a seed")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetch workers")
	cmd.Flags().IntP("retries", "r", config.DefaultRetryBudget,
		"Maximum fetch attempts per page")
	cmd.Flags().Int("frontier-capacity", config.DefaultFrontierCapacity,
		"Maximum number of queued targets")
	cmd.Flags().Int("circuits", config.DefaultMaxCircuits,
		"Size of the Tor circuit pool")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Politeness delay between requests per worker")
	cmd.Flags().Int64("max-body", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().Bool("allow-clearnet", false,
		"Follow links to non-onion hosts (off by default)")

	// Seed sources
	cmd.Flags().StringP("seeds", "s", "",
		"Seed list file (one URL per line, or YAML with priorities)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .onionmap in current or home directory)")

	// Storage
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write summary to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with secret redaction
	verbose := getVerboseFlag(cmd)
	cfg.Verbose = verbose
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, draining crawl...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the config file and cobra flags.
// Precedence: built-in defaults, then the config file, then flags the
// user actually set on the command line.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	configFilePath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configFilePath

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently skip when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := cf.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// Positional arguments are inline seed URLs
	cfg.Seeds = append(cfg.Seeds, args...)

	return cfg, nil
}

// applyFlags overlays command-line flags onto the config. Only flags the
// user actually changed are applied, so config file values survive.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("external-tor") {
		addr, err := flags.GetString("external-tor")
		if err != nil {
			return err
		}
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = addr
	}

	var err error
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("depth") {
		if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if flags.Changed("retries") {
		if cfg.RetryBudget, err = flags.GetInt("retries"); err != nil {
			return err
		}
	}
	if flags.Changed("frontier-capacity") {
		if cfg.FrontierCapacity, err = flags.GetInt("frontier-capacity"); err != nil {
			return err
		}
	}
	if flags.Changed("circuits") {
		if cfg.MaxCircuits, err = flags.GetInt("circuits"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("max-body") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body"); err != nil {
			return err
		}
	}
	if flags.Changed("allow-clearnet") {
		if cfg.AllowClearnet, err = flags.GetBool("allow-clearnet"); err != nil {
			return err
		}
	}
	if flags.Changed("seeds") {
		if cfg.SeedFile, err = flags.GetString("seeds"); err != nil {
			return err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}

	return nil
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	seeds, err := collectSeeds(cfg)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return errors.New("no seeds provided (specify seed URLs as arguments or use --seeds)")
	}

	logger.Info("starting crawl",
		"seeds", len(seeds),
		"workers", cfg.Workers,
		"maxDepth", cfg.MaxDepth,
		"useExternalTor", cfg.UseExternalTor,
	)

	db, err := store.Open(cfg.DBDir, store.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Best effort cleanup
	logger.Info("database opened", "dir", cfg.DBDir)

	// Flush edges left over from an earlier interrupted run before new
	// writes land on top of them.
	if replayed, err := db.ReplayEdges(ctx); err != nil {
		logger.Warn("edge replay failed", "error", err)
	} else if replayed > 0 {
		logger.Info("replayed queued edges", "count", replayed)
	}

	var client *tor.Client
	var embeddedTor *tor.EmbeddedTor

	if cfg.UseExternalTor {
		client, err = tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create Tor client: %w", err)
		}

		status := client.CheckConnection(ctx)
		if status != tor.ProxyStatusOK {
			return fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.TorProxyAddress)
		}

		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
	} else {
		client, embeddedTor, err = startEmbeddedTor(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}

	channel := tor.NewCircuitChannel(client)
	circuits := circuit.NewManager(channel,
		circuit.WithMaxCircuits(cfg.MaxCircuits),
		circuit.WithLogger(logger),
	)
	defer circuits.Close()

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithOnionOnly(!cfg.AllowClearnet),
		fetch.WithLogger(logger),
	}
	if cfg.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(cfg.UserAgent))
	}
	fetcher := fetch.New(fetchOpts...)

	fr := frontier.New(cfg.FrontierCapacity)

	eng := engine.New(fr, db, circuits, fetcher,
		engine.WithWorkers(cfg.Workers),
		engine.WithRetryBudget(cfg.RetryBudget),
		engine.WithRetryBackoff(cfg.RetryBackoff),
		engine.WithMaxDepth(cfg.MaxDepth),
		engine.WithCrawlDelay(cfg.CrawlDelay),
		engine.WithLogger(logger),
	)

	started := time.Now()
	runErr := eng.Run(ctx, seeds)
	elapsed := time.Since(started)

	if errors.Is(runErr, context.Canceled) {
		logger.Info("crawl stopped", "elapsed", elapsed.Round(time.Second))
		runErr = nil
	}

	// Summary counters come from the store with a fresh context; the
	// crawl context may already be cancelled.
	summary := buildSummary(context.Background(), started, elapsed, len(seeds), eng, fr, circuits, db, logger)
	if err := outputSummary(cfg, summary); err != nil {
		logger.Error("summary output failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	return nil
}

// collectSeeds merges the seed file with inline seed URLs into
// normalized depth-zero targets. Onion seed hosts are checksum-validated
// up front, so a typo'd address fails the run before any circuit is
// spent on it.
func collectSeeds(cfg *config.Config) ([]model.Target, error) {
	var seeds []model.Target

	if cfg.SeedFile != "" {
		fileSeeds, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fileSeeds...)
	}

	for _, raw := range cfg.Seeds {
		normalized, err := model.NormalizeURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL %q: %w", raw, err)
		}
		seeds = append(seeds, model.Target{URL: normalized})
	}

	for _, target := range seeds {
		if err := validateSeedHost(target.URL); err != nil {
			return nil, err
		}
	}

	return seeds, nil
}

// validateSeedHost rejects seed URLs whose host claims to be an onion
// service but fails v3 address validation. Non-onion hosts pass; the
// link policy decides whether those get crawled.
func validateSeedHost(seedURL string) error {
	u, err := url.Parse(seedURL)
	if err != nil {
		return fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
	}

	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, tor.OnionSuffix) {
		return nil
	}

	if _, err := tor.NormalizeAddress(host); err != nil {
		return fmt.Errorf("seed %q: %w", seedURL, err)
	}
	return nil
}

// buildSummary aggregates crawl, frontier, circuit, and graph counters.
func buildSummary(ctx context.Context, started time.Time, elapsed time.Duration, seedCount int,
	eng *engine.Engine, fr *frontier.Frontier, circuits *circuit.Manager, db *store.DB, logger *slog.Logger,
) *report.Summary {
	stats := eng.Stats()
	frStats := fr.Stats()
	circStats := circuits.Stats()

	summary := &report.Summary{
		StartedAt:         started,
		Duration:          elapsed,
		Seeds:             seedCount,
		PagesCrawled:      stats.PagesCrawled,
		PagesFailed:       stats.PagesFailed,
		Retries:           stats.Retries,
		URLDuplicates:     stats.URLDuplicates,
		ContentDuplicates: stats.ContentDuplicates,
		DepthLimited:      stats.DepthLimited,
		FrontierEvicted:   frStats.Evicted,
		FrontierDropped:   frStats.Dropped,
		EdgesQueued:       stats.EdgesQueued,
		CircuitsBuilt:     circStats.Built,
		CircuitsRotated:   circStats.RotatedOnFailure + circStats.RotatedOnSchedule,
	}

	var err error
	if summary.Nodes, err = db.NodeCount(ctx); err != nil {
		logger.Warn("node count failed", "error", err)
	}
	if summary.Edges, err = db.EdgeCount(ctx); err != nil {
		logger.Warn("edge count failed", "error", err)
	}
	if summary.Hosts, err = db.HostCount(ctx); err != nil {
		logger.Warn("host count failed", "error", err)
	}
	if summary.PendingReplay, err = db.PendingReplayCount(ctx); err != nil {
		logger.Warn("replay count failed", "error", err)
	}

	return summary
}

// outputSummary writes the crawl summary in the requested format.
func outputSummary(cfg *config.Config, summary *report.Summary) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with owner-only permissions;
		// crawl output reveals what was visited.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // Best effort cleanup
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(summary)
	return err
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns the Tor client and embedded Tor manager on success.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Println("Starting embedded Tor daemon...")
	fmt.Printf("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)

	fmt.Printf("Embedded Tor daemon started successfully!\n")
	fmt.Printf("SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	status := client.CheckConnection(ctx)
	if status != tor.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, embeddedTor, nil
}
