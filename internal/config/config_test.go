package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validConfig returns a config that passes validation.
func validConfig() *Config {
	c := NewConfig()
	c.Seeds = []string{"http://exampleonionabcd.onion/"}
	return c
}

func TestNewConfigDefaults(t *testing.T) {
	t.Parallel()

	c := NewConfig()

	if c.TorProxyAddress != DefaultTorProxyAddress {
		t.Errorf("TorProxyAddress = %q, want %q", c.TorProxyAddress, DefaultTorProxyAddress)
	}
	if c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
	if c.MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", c.MaxDepth, DefaultMaxDepth)
	}
	if c.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", c.Workers, DefaultWorkers)
	}
	if c.RetryBudget != DefaultRetryBudget {
		t.Errorf("RetryBudget = %d, want %d", c.RetryBudget, DefaultRetryBudget)
	}
	if c.FrontierCapacity != DefaultFrontierCapacity {
		t.Errorf("FrontierCapacity = %d, want %d", c.FrontierCapacity, DefaultFrontierCapacity)
	}
	if c.MaxCircuits != DefaultMaxCircuits {
		t.Errorf("MaxCircuits = %d, want %d", c.MaxCircuits, DefaultMaxCircuits)
	}
	if c.CrawlDelay != DefaultCrawlDelay {
		t.Errorf("CrawlDelay = %v, want %v", c.CrawlDelay, DefaultCrawlDelay)
	}
	if c.MaxBodySize != DefaultMaxBodySize {
		t.Errorf("MaxBodySize = %d, want %d", c.MaxBodySize, DefaultMaxBodySize)
	}
	if c.DBDir == "" {
		t.Error("DBDir is empty, want XDG data directory")
	}
	if c.UseExternalTor {
		t.Error("UseExternalTor = true, want embedded Tor by default")
	}
	if c.AllowClearnet {
		t.Error("AllowClearnet = true, want onion-only by default")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "seed file alone is enough",
			mutate:  func(c *Config) { c.Seeds = nil; c.SeedFile = "seeds.txt" },
			wantErr: nil,
		},
		{
			name:    "no seeds at all",
			mutate:  func(c *Config) { c.Seeds = nil; c.SeedFile = "" },
			wantErr: ErrNoSeeds,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: ErrInvalidWorkers,
		},
		{
			name:    "zero retry budget",
			mutate:  func(c *Config) { c.RetryBudget = 0 },
			wantErr: ErrInvalidRetryBudget,
		},
		{
			name:    "negative max depth",
			mutate:  func(c *Config) { c.MaxDepth = -1 },
			wantErr: ErrInvalidMaxDepth,
		},
		{
			name:    "depth zero is valid",
			mutate:  func(c *Config) { c.MaxDepth = 0 },
			wantErr: nil,
		},
		{
			name:    "zero frontier capacity",
			mutate:  func(c *Config) { c.FrontierCapacity = 0 },
			wantErr: ErrInvalidFrontierCapacity,
		},
		{
			name:    "zero circuits",
			mutate:  func(c *Config) { c.MaxCircuits = 0 },
			wantErr: ErrInvalidMaxCircuits,
		},
		{
			name:    "conflicting report formats",
			mutate:  func(c *Config) { c.JSONReport = true; c.MarkdownReport = true },
			wantErr: ErrConflictingReportFormats,
		},
		{
			name:    "negative crawl delay",
			mutate:  func(c *Config) { c.CrawlDelay = -time.Second },
			wantErr: ErrInvalidCrawlDelay,
		},
		{
			name:    "zero crawl delay is valid",
			mutate:  func(c *Config) { c.CrawlDelay = 0 },
			wantErr: nil,
		},
		{
			name:    "negative max body size",
			mutate:  func(c *Config) { c.MaxBodySize = -1 },
			wantErr: ErrInvalidMaxBodySize,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tc.mutate(c)

			err := c.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadConfigFile() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("malformed yaml returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("workers: [not an int"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("LoadConfigFile() error = nil, want yaml error")
		}
	})

	t.Run("loads and applies settings", func(t *testing.T) {
		t.Parallel()

		body := `
torProxyAddress: "127.0.0.1:9150"
timeout: "90s"
maxDepth: 5
workers: 8
crawlDelay: "250ms"
seeds:
  - http://exampleonionabcd.onion/
`
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}

		c := NewConfig()
		if err := cf.Apply(c); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}

		if c.TorProxyAddress != "127.0.0.1:9150" {
			t.Errorf("TorProxyAddress = %q", c.TorProxyAddress)
		}
		if c.Timeout != 90*time.Second {
			t.Errorf("Timeout = %v, want 90s", c.Timeout)
		}
		if c.MaxDepth != 5 {
			t.Errorf("MaxDepth = %d, want 5", c.MaxDepth)
		}
		if c.Workers != 8 {
			t.Errorf("Workers = %d, want 8", c.Workers)
		}
		if c.CrawlDelay != 250*time.Millisecond {
			t.Errorf("CrawlDelay = %v, want 250ms", c.CrawlDelay)
		}
		if len(c.Seeds) != 1 {
			t.Errorf("Seeds = %v, want one entry", c.Seeds)
		}

		// Fields absent from the file keep their defaults.
		if c.RetryBudget != DefaultRetryBudget {
			t.Errorf("RetryBudget = %d, want untouched default %d", c.RetryBudget, DefaultRetryBudget)
		}
		if c.MaxBodySize != DefaultMaxBodySize {
			t.Errorf("MaxBodySize = %d, want untouched default %d", c.MaxBodySize, DefaultMaxBodySize)
		}
	})

	t.Run("explicit zero overrides default", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("workers: 0\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}

		c := validConfig()
		if err := cf.Apply(c); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if c.Workers != 0 {
			t.Errorf("Workers = %d, want explicit 0 from file", c.Workers)
		}
		if !errors.Is(c.Validate(), ErrInvalidWorkers) {
			t.Error("expected explicit workers: 0 to fail validation")
		}
	})

	t.Run("bad duration fails apply", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(`timeout: "ninety seconds"`), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}

		if err := cf.Apply(NewConfig()); err == nil {
			t.Error("Apply() error = nil, want duration parse error")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("workers: 2\n"), 0600); err != nil {
			t.Fatal(err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile(%q) = %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "absent.yaml")
		if got := FindConfigFile(missing); got != "" {
			t.Errorf("FindConfigFile(%q) = %q, want empty", missing, got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); filepath.Base(dir) != AppName {
		t.Errorf("XDGDataDir() = %q, want a path ending in %q", dir, AppName)
	}
	if dir := XDGConfigDir(); filepath.Base(dir) != AppName {
		t.Errorf("XDGConfigDir() = %q, want a path ending in %q", dir, AppName)
	}
}
