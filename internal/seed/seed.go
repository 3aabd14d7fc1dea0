// Package seed loads crawl seed lists from files.
//
// Two formats are supported. Plain text files carry one URL per line
// with # comments. YAML files (.yaml or .yml) carry a list of entries
// with an optional per-seed priority:
//
//	- url: http://example.onion/
//	  priority: 10
//	- url: http://other.onion/
package seed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/onionmap/onionmap/internal/model"
)

// Entry is one YAML seed list item.
type Entry struct {
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
}

// Load reads a seed file and returns normalized crawl targets at depth
// zero. The format is chosen by file extension.
func Load(path string) ([]model.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(f)
	default:
		return ParseText(f)
	}
}

// ParseText reads one URL per line. Blank lines and lines starting
// with # are skipped. Malformed URLs fail the whole load with the line
// number, so typos in a seed list surface before the crawl starts.
func ParseText(r io.Reader) ([]model.Target, error) {
	var targets []model.Target

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		normalized, err := model.NormalizeURL(text)
		if err != nil {
			return nil, fmt.Errorf("seed line %d: %w", line, err)
		}
		targets = append(targets, model.Target{URL: normalized})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	return targets, nil
}

// ParseYAML reads a YAML seed list with optional priorities.
func ParseYAML(r io.Reader) ([]model.Target, error) {
	var entries []Entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}

	targets := make([]model.Target, 0, len(entries))
	for i, entry := range entries {
		normalized, err := model.NormalizeURL(entry.URL)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i+1, err)
		}
		targets = append(targets, model.Target{
			URL:      normalized,
			Priority: entry.Priority,
		})
	}

	return targets, nil
}
