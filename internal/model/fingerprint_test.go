package model

import "testing"

func TestURLFingerprint(t *testing.T) {
	t.Parallel()

	a := URLFingerprint("http://exampleonion.onion/")
	b := URLFingerprint("http://exampleonion.onion/")
	if a != b {
		t.Errorf("URLFingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("URLFingerprint length = %d, want 64 hex chars", len(a))
	}

	if URLFingerprint("http://other.onion/") == a {
		t.Error("distinct URLs produced the same fingerprint")
	}
}

func TestContentFingerprint(t *testing.T) {
	t.Parallel()

	body := []byte("<html><body>hello</body></html>")

	a := ContentFingerprint(body)
	b := ContentFingerprint(body)
	if a != b {
		t.Errorf("ContentFingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("ContentFingerprint length = %d, want 64 hex chars", len(a))
	}

	if ContentFingerprint([]byte("different")) == a {
		t.Error("distinct bodies produced the same fingerprint")
	}

	if got := ContentFingerprint(nil); got != "" {
		t.Errorf("ContentFingerprint(nil) = %q, want empty", got)
	}
	if got := ContentFingerprint([]byte{}); got != "" {
		t.Errorf("ContentFingerprint(empty) = %q, want empty", got)
	}
}

// TestFingerprintNamespaces verifies that a URL fingerprint and a content
// fingerprint of the same bytes differ, since both kinds share a store.
func TestFingerprintNamespaces(t *testing.T) {
	t.Parallel()

	payload := "http://exampleonion.onion/"
	if URLFingerprint(payload) == ContentFingerprint([]byte(payload)) {
		t.Error("URL and content fingerprints of identical bytes collide")
	}
}
