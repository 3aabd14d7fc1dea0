package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".onionmap"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the .onionmap configuration file. Every field
// is optional; unset fields leave the built-in defaults (or CLI flags)
// untouched. Duration fields use Go duration syntax ("90s", "2m").
//
// Design decision: pointer fields distinguish "not set" from a zero
// value, so a config file can explicitly set workers: 0 to trigger a
// validation error instead of silently falling back to the default.
type File struct {
	TorProxyAddress  *string  `yaml:"torProxyAddress,omitempty"`
	Timeout          *string  `yaml:"timeout,omitempty"`
	MaxDepth         *int     `yaml:"maxDepth,omitempty"`
	Workers          *int     `yaml:"workers,omitempty"`
	RetryBudget      *int     `yaml:"retryBudget,omitempty"`
	RetryBackoff     *string  `yaml:"retryBackoff,omitempty"`
	FrontierCapacity *int     `yaml:"frontierCapacity,omitempty"`
	MaxCircuits      *int     `yaml:"maxCircuits,omitempty"`
	CrawlDelay       *string  `yaml:"crawlDelay,omitempty"`
	UserAgent        *string  `yaml:"userAgent,omitempty"`
	MaxBodySize      *int64   `yaml:"maxBodySize,omitempty"`
	DBDir            *string  `yaml:"dbDir,omitempty"`
	Seeds            []string `yaml:"seeds,omitempty"`
}

// LoadConfigFile loads crawl settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// Apply overlays the file's settings onto a Config. Fields absent from
// the file are left as-is, so the precedence is defaults, then file,
// then CLI flags applied by the caller afterward.
func (cf *File) Apply(c *Config) error {
	if cf.TorProxyAddress != nil {
		c.TorProxyAddress = *cf.TorProxyAddress
	}
	if cf.Timeout != nil {
		d, err := time.ParseDuration(*cf.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		c.Timeout = d
	}
	if cf.MaxDepth != nil {
		c.MaxDepth = *cf.MaxDepth
	}
	if cf.Workers != nil {
		c.Workers = *cf.Workers
	}
	if cf.RetryBudget != nil {
		c.RetryBudget = *cf.RetryBudget
	}
	if cf.RetryBackoff != nil {
		d, err := time.ParseDuration(*cf.RetryBackoff)
		if err != nil {
			return fmt.Errorf("config retryBackoff: %w", err)
		}
		c.RetryBackoff = d
	}
	if cf.FrontierCapacity != nil {
		c.FrontierCapacity = *cf.FrontierCapacity
	}
	if cf.MaxCircuits != nil {
		c.MaxCircuits = *cf.MaxCircuits
	}
	if cf.CrawlDelay != nil {
		d, err := time.ParseDuration(*cf.CrawlDelay)
		if err != nil {
			return fmt.Errorf("config crawlDelay: %w", err)
		}
		c.CrawlDelay = d
	}
	if cf.UserAgent != nil {
		c.UserAgent = *cf.UserAgent
	}
	if cf.MaxBodySize != nil {
		c.MaxBodySize = *cf.MaxBodySize
	}
	if cf.DBDir != nil {
		c.DBDir = *cf.DBDir
	}
	if len(cf.Seeds) > 0 {
		c.Seeds = append(c.Seeds, cf.Seeds...)
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .onionmap in the current directory
// 3. Look for .onionmap in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
