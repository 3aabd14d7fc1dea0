package tor

import (
	"encoding/base32"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the
	// ".onion" suffix: 56 base32 characters.
	OnionV3Length = 56

	// OnionV3Version is the version byte encoded in v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"
)

// onionV3Pattern matches a complete v3 onion address.
// Base32 uses lowercase a-z and digits 2-7.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// onionHostPattern matches any onion-looking hostname inside larger text.
// It covers both the deprecated v2 (16 chars) and v3 (56 chars) forms so
// link filtering can recognize onion hosts before validating them.
var onionHostPattern = regexp.MustCompile(`\b[a-z2-7]{16,56}\.onion\b`)

// checksumPrefix is the prefix of the v3 checksum input, per the Tor
// rendezvous specification.
var checksumPrefix = []byte(".onion checksum")

// Onion address validation errors.
var (
	// ErrInvalidOnionAddress is returned when an address is not a valid
	// v3 onion address.
	ErrInvalidOnionAddress = errors.New("invalid onion address")
)

// IsOnionHost reports whether the given hostname looks like an onion
// service hostname. This is a syntactic check used for link filtering;
// it intentionally accepts v2-length names so they can be counted and
// skipped explicitly rather than mistaken for clearnet hosts.
func IsOnionHost(host string) bool {
	return onionHostPattern.MatchString(strings.ToLower(host)) &&
		strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// IsValidV3Address checks if the given address is a valid v3 onion
// address, including checksum verification.
//
// Full checksum validation (rather than pattern matching alone) catches
// typos and corrupted addresses the same way Tor itself would.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)

	if !onionV3Pattern.MatchString(address) {
		return false
	}

	onionPart := strings.TrimSuffix(address, OnionSuffix)

	// The Tor spec uses standard base32 encoding (RFC 4648).
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(onionPart))
	if err != nil {
		return false
	}

	// 32 bytes ed25519 public key + 2 bytes checksum + 1 byte version.
	if len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]

	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum computes the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// NormalizeAddress normalizes an onion address to lowercase with the
// .onion suffix and validates it.
//
// Handled input variations: uppercase letters, missing .onion suffix,
// surrounding whitespace, URL schemes, and trailing paths or query
// strings.
func NormalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	address = strings.TrimPrefix(address, "https://")
	address = strings.TrimPrefix(address, "http://")

	if idx := strings.IndexAny(address, "/?#"); idx != -1 {
		address = address[:idx]
	}

	if !strings.HasSuffix(address, OnionSuffix) {
		address += OnionSuffix
	}

	if !IsValidV3Address(address) {
		return "", ErrInvalidOnionAddress
	}

	return address, nil
}
