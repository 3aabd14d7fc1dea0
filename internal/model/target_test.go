package model

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "already normalized",
			input: "http://exampleonion.onion/page",
			want:  "http://exampleonion.onion/page",
		},
		{
			name:  "uppercase scheme and host are lowered",
			input: "HTTP://ExampleOnion.ONION/Page",
			want:  "http://exampleonion.onion/Page",
		},
		{
			name:  "fragment is stripped",
			input: "http://exampleonion.onion/page#section",
			want:  "http://exampleonion.onion/page",
		},
		{
			name:  "empty path becomes slash",
			input: "http://exampleonion.onion",
			want:  "http://exampleonion.onion/",
		},
		{
			name:  "missing scheme defaults to http",
			input: "exampleonion.onion/page",
			want:  "http://exampleonion.onion/page",
		},
		{
			name:  "query string survives",
			input: "http://exampleonion.onion/search?q=1",
			want:  "http://exampleonion.onion/search?q=1",
		},
		{
			name:  "surrounding whitespace is trimmed",
			input: "  http://exampleonion.onion/  ",
			want:  "http://exampleonion.onion/",
		},
		{
			name:    "empty string has no host",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only has no host",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeURL(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NormalizeURL(%q) = %q, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// TestNormalizeURLIdempotent verifies that normalizing twice gives the
// same result: normalized URLs are the canonical form everywhere else in
// the system.
func TestNormalizeURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTP://ExampleOnion.ONION",
		"exampleonion.onion/a/b#frag",
		"http://exampleonion.onion/search?q=1",
	}

	for _, input := range inputs {
		once, err := NormalizeURL(input)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", input, err)
		}
		twice, err := NormalizeURL(once)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", once, err)
		}
		if once != twice {
			t.Errorf("NormalizeURL not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "normalized URL",
			input: "http://exampleonion.onion/page",
			want:  "exampleonion.onion",
		},
		{
			name:  "host with port",
			input: "http://exampleonion.onion:8080/",
			want:  "exampleonion.onion:8080",
		},
		{
			name:  "unparseable input returned unchanged",
			input: "not a url",
			want:  "not a url",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Host(tc.input); got != tc.want {
				t.Errorf("Host(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
