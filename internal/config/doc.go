// Package config provides configuration structures and utilities for the
// crawler. It defines crawl, circuit, and storage settings, their
// defaults, and an optional YAML configuration file that overrides them.
package config
