package tor

import (
	"errors"
	"strings"
	"testing"
)

// Test v3 onion addresses - these are valid addresses generated from deterministic public keys
// for testing purposes only. They do not correspond to any real hidden services.
const (
	// testOnionV3Addr1 is generated from an all-zero 32-byte public key
	testOnionV3Addr1 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	// testOnionV3Addr2 is generated from a sequential (0,1,2,...,31) public key
	testOnionV3Addr2 = "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"
)

// TestIsValidV3Address tests v3 onion address validation.
// Test addresses are generated using the v3 address format specification.
func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		address  string
		expected bool
	}{
		{
			name:     "valid v3 address (test address)",
			address:  testOnionV3Addr1,
			expected: true,
		},
		{
			name:     "second valid v3 address",
			address:  testOnionV3Addr2,
			expected: true,
		},
		{
			name:     "valid v3 address uppercase should match after normalization",
			address:  "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM2DQD.onion",
			expected: true,
		},
		{
			name:     "v2 address (16 chars) should be invalid",
			address:  "facebookcorewwwi.onion",
			expected: false,
		},
		{
			name:     "too short address",
			address:  "abc.onion",
			expected: false,
		},
		{
			name:     "too long address",
			address:  strings.Repeat("a", 57) + ".onion",
			expected: false,
		},
		{
			name:     "missing .onion suffix",
			address:  strings.Repeat("a", 56),
			expected: false,
		},
		{
			name:     "invalid characters (contains 0)",
			address:  strings.Repeat("0", 56) + ".onion",
			expected: false,
		},
		{
			name:     "invalid characters (contains 1)",
			address:  strings.Repeat("1", 56) + ".onion",
			expected: false,
		},
		{
			name:     "empty string",
			address:  "",
			expected: false,
		},
		{
			name: "wrong checksum (modified last char)",
			// Take a valid address and modify it slightly to break checksum
			address:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqe.onion",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := IsValidV3Address(tc.address)
			if result != tc.expected {
				t.Errorf("IsValidV3Address(%q) = %v, expected %v", tc.address, result, tc.expected)
			}
		})
	}
}

// TestIsOnionHost tests the syntactic host check used for link filtering.
func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		host     string
		expected bool
	}{
		{
			name:     "v3 host",
			host:     strings.TrimSuffix(testOnionV3Addr1, ".onion") + ".onion",
			expected: true,
		},
		{
			name:     "v2-length host is still an onion host",
			host:     "facebookcorewwwi.onion",
			expected: true,
		},
		{
			name:     "uppercase host",
			host:     "FACEBOOKCOREWWWI.ONION",
			expected: true,
		},
		{
			name:     "clearnet host",
			host:     "example.com",
			expected: false,
		},
		{
			name:     "onion-like but too short",
			host:     "abc.onion",
			expected: false,
		},
		{
			name:     "onion TLD on a non-base32 label",
			host:     "not_base32_here.onion",
			expected: false,
		},
		{
			name:     "empty host",
			host:     "",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsOnionHost(tc.host); got != tc.expected {
				t.Errorf("IsOnionHost(%q) = %v, expected %v", tc.host, got, tc.expected)
			}
		})
	}
}

// TestNormalizeAddress tests address normalization.
func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	t.Run("valid address is returned unchanged (except case)", func(t *testing.T) {
		t.Parallel()
		input := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM2DQD.onion"
		expected := testOnionV3Addr1

		result, err := NormalizeAddress(input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != expected {
			t.Errorf("got %q, expected %q", result, expected)
		}
	})

	t.Run("address without .onion suffix gets it added", func(t *testing.T) {
		t.Parallel()
		input := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd"
		expected := testOnionV3Addr1

		result, err := NormalizeAddress(input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != expected {
			t.Errorf("got %q, expected %q", result, expected)
		}
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		t.Parallel()
		input := "  " + testOnionV3Addr1 + "  \n"
		expected := testOnionV3Addr1

		result, err := NormalizeAddress(input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != expected {
			t.Errorf("got %q, expected %q", result, expected)
		}
	})

	t.Run("invalid address returns error", func(t *testing.T) {
		t.Parallel()
		input := "invalid"

		_, err := NormalizeAddress(input)
		if err == nil {
			t.Error("expected error, got nil")
		}
		if !errors.Is(err, ErrInvalidOnionAddress) {
			t.Errorf("expected ErrInvalidOnionAddress, got %v", err)
		}
	})

	t.Run("v2 address is rejected", func(t *testing.T) {
		t.Parallel()
		input := "facebookcorewwwi.onion"

		if _, err := NormalizeAddress(input); !errors.Is(err, ErrInvalidOnionAddress) {
			t.Errorf("expected ErrInvalidOnionAddress, got %v", err)
		}
	})

	t.Run("https URL scheme is stripped", func(t *testing.T) {
		t.Parallel()
		input := "https://" + testOnionV3Addr1
		expected := testOnionV3Addr1

		result, err := NormalizeAddress(input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != expected {
			t.Errorf("got %q, expected %q", result, expected)
		}
	})

	t.Run("URL with path is handled", func(t *testing.T) {
		t.Parallel()
		input := "https://" + testOnionV3Addr1 + "/search?q=test"
		expected := testOnionV3Addr1

		result, err := NormalizeAddress(input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != expected {
			t.Errorf("got %q, expected %q", result, expected)
		}
	})
}
