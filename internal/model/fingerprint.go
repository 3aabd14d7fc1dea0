package model

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Fingerprint kinds stored in the dedup store. Kept as strings rather
// than an enum because they appear directly in the database schema.
const (
	// FingerprintKindURL marks a fingerprint of a normalized URL.
	FingerprintKindURL = "url"

	// FingerprintKindContent marks a fingerprint of fetched content bytes.
	FingerprintKindContent = "content"
)

// URLFingerprint returns the SHA3-256 hex digest of a normalized URL.
//
// SHA3 is used here (rather than SHA-256 as for content) so a URL
// fingerprint and a content fingerprint of identical bytes can never
// collide in a shared namespace.
func URLFingerprint(normalizedURL string) string {
	sum := sha3.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

// ContentFingerprint returns the SHA-256 hex digest of a page body.
// Returns the empty string for empty content; an empty body carries no
// identity worth deduplicating on.
func ContentFingerprint(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
