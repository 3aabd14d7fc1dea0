package model

import (
	"net/url"
	"strings"
)

// Target is a crawl candidate: a normalized URL plus the discovery
// context needed for scheduling.
//
// A Target is owned by the frontier while queued. Workers receive a copy
// at dispatch time and never share it, so no field requires locking.
type Target struct {
	// URL is the normalized URL of the page to fetch.
	// Always produced by NormalizeURL; never a raw user-supplied string.
	URL string

	// Depth is the discovery depth: 0 for seeds, parent depth + 1 for
	// links found during crawling. Lower depth means higher priority.
	Depth int

	// Priority is an optional priority boost supplied by the seed source.
	// Within the same depth, higher priority targets are popped first.
	Priority int

	// Origin is the URL of the page this target was discovered on.
	// Empty for seeds.
	Origin string

	// Attempts counts how many times this target has been dispatched.
	// Incremented by the orchestrator on each retry re-queue.
	Attempts int
}

// NormalizeURL canonicalizes a URL for deduplication and storage.
//
// Normalization rules:
//   - scheme and host are lowercased
//   - the fragment is removed (it never changes the fetched content)
//   - an empty path becomes "/" so http://x.onion and http://x.onion/
//     are one page
//   - a missing scheme defaults to http, the common case for onion services
//
// Returns an error for strings that do not parse as URLs or lack a host.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	if u.Scheme == "" {
		// Re-parse so the host doesn't end up in the path
		u, err = url.Parse("http://" + strings.TrimSpace(raw))
		if err != nil {
			return "", err
		}
	}

	if u.Host == "" {
		return "", &url.Error{Op: "normalize", URL: raw, Err: errMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// Host extracts the lowercased host from a normalized URL.
// Returns the input unchanged if it does not parse, which keeps graph
// writes going for odd-but-stored URLs.
func Host(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil || u.Host == "" {
		return normalizedURL
	}
	return strings.ToLower(u.Host)
}
