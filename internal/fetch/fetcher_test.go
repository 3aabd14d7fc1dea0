package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onionmap/onionmap/internal/circuit"
	"github.com/onionmap/onionmap/internal/model"
)

// testHandle is a circuit handle backed by an httptest client.
type testHandle struct {
	client *http.Client
}

func (h *testHandle) ID() string               { return "test-circuit" }
func (h *testHandle) HTTPClient() *http.Client { return h.client }

// testChannel builds handles carrying the test server's client.
type testChannel struct {
	client *http.Client
}

func (ch *testChannel) Build(_ context.Context) (circuit.Handle, error) {
	return &testHandle{client: ch.client}, nil
}

func (ch *testChannel) Teardown(_ context.Context, _ circuit.Handle) error {
	return nil
}

// leaseCircuit leases a circuit whose HTTP client talks to the given
// test server.
func leaseCircuit(t *testing.T, server *httptest.Server) *circuit.Circuit {
	t.Helper()

	m := circuit.NewManager(&testChannel{client: server.Client()}, circuit.WithMaxCircuits(1))
	t.Cleanup(m.Close)

	c, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	t.Cleanup(func() {
		_ = m.Release(c, circuit.OutcomeSuccess)
	})
	return c
}

func TestFetchOk(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Hidden Wiki</title></head><body>
		<a href="http://exampleonionabcd.onion/page">onion link</a>
		<a href="https://clearnet.example.com/">clearnet link</a>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := New()
	result := f.Fetch(context.Background(),
		model.Target{URL: server.URL + "/"}, leaseCircuit(t, server))

	if result.Status != model.StatusOk {
		t.Fatalf("Status = %s, want ok (err: %v)", result.Status, result.Err)
	}
	if result.HTTPStatus != http.StatusOK {
		t.Errorf("HTTPStatus = %d, want 200", result.HTTPStatus)
	}
	if result.Title != "Hidden Wiki" {
		t.Errorf("Title = %q, want %q", result.Title, "Hidden Wiki")
	}
	if result.ContentHash != model.ContentFingerprint([]byte(page)) {
		t.Error("ContentHash does not match the body fingerprint")
	}

	// Default policy keeps onion links only.
	want := []string{"http://exampleonionabcd.onion/page"}
	if len(result.Links) != 1 || result.Links[0] != want[0] {
		t.Errorf("Links = %v, want %v", result.Links, want)
	}
}

// TestFetchDeterministicLinks verifies the same page always yields the
// same link sequence.
func TestFetchDeterministicLinks(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<a href="/b">b</a>
		<a href="/c">c</a>
		<a href="/b">b again</a>
		<a href="/a">a</a>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := New(WithOnionOnly(false))
	c := leaseCircuit(t, server)
	target := model.Target{URL: server.URL + "/"}

	first := f.Fetch(context.Background(), target, c)
	second := f.Fetch(context.Background(), target, c)

	if first.Status != model.StatusOk || second.Status != model.StatusOk {
		t.Fatalf("Status = %s / %s, want ok", first.Status, second.Status)
	}
	if len(first.Links) != 3 {
		t.Fatalf("Links = %v, want 3 deduplicated links in document order", first.Links)
	}
	for i := range first.Links {
		if first.Links[i] != second.Links[i] {
			t.Errorf("link %d differs between fetches: %q vs %q", i, first.Links[i], second.Links[i])
		}
	}
	if !strings.HasSuffix(first.Links[0], "/b") || !strings.HasSuffix(first.Links[1], "/c") || !strings.HasSuffix(first.Links[2], "/a") {
		t.Errorf("Links = %v, want document order b, c, a", first.Links)
	}
}

func TestFetchBlockedStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		code int
		want model.FetchStatus
	}{
		{"forbidden", http.StatusForbidden, model.StatusBlocked},
		{"rate limited", http.StatusTooManyRequests, model.StatusBlocked},
		{"legal block", http.StatusUnavailableForLegalReasons, model.StatusBlocked},
		{"not found", http.StatusNotFound, model.StatusError},
		{"server error", http.StatusInternalServerError, model.StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.code)
			}))
			defer server.Close()

			f := New()
			result := f.Fetch(context.Background(),
				model.Target{URL: server.URL + "/"}, leaseCircuit(t, server))

			if result.Status != tc.want {
				t.Errorf("Status = %s, want %s", result.Status, tc.want)
			}
			if result.HTTPStatus != tc.code {
				t.Errorf("HTTPStatus = %d, want %d", result.HTTPStatus, tc.code)
			}
			if result.Body != nil {
				t.Error("Body set on a terminal non-2xx result")
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("too late"))
	}))
	defer server.Close()
	defer close(release)

	f := New(WithTimeout(50 * time.Millisecond))
	result := f.Fetch(context.Background(),
		model.Target{URL: server.URL + "/"}, leaseCircuit(t, server))

	if result.Status != model.StatusTimeout {
		t.Errorf("Status = %s, want timeout (err: %v)", result.Status, result.Err)
	}
	if result.Err == nil {
		t.Error("Err not set on timeout result")
	}
}

func TestFetchTruncation(t *testing.T) {
	t.Parallel()

	// A body larger than the cap but still parseable as HTML.
	page := "<html><body>" + strings.Repeat("x", 4096) + "</body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	const bodyCap = 1024
	f := New(WithMaxBodySize(bodyCap))
	result := f.Fetch(context.Background(),
		model.Target{URL: server.URL + "/"}, leaseCircuit(t, server))

	if result.Status != model.StatusOk {
		t.Fatalf("Status = %s, want ok for truncated-but-parseable body", result.Status)
	}
	if !result.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(result.Body) != bodyCap {
		t.Errorf("len(Body) = %d, want exactly the %d byte cap", len(result.Body), bodyCap)
	}
	if result.ContentHash != model.ContentFingerprint(result.Body) {
		t.Error("ContentHash not computed over the truncated body")
	}
}

func TestFetchNonHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key": "value"}`))
	}))
	defer server.Close()

	f := New()
	result := f.Fetch(context.Background(),
		model.Target{URL: server.URL + "/"}, leaseCircuit(t, server))

	if result.Status != model.StatusOk {
		t.Fatalf("Status = %s, want ok", result.Status)
	}
	if len(result.Links) != 0 {
		t.Errorf("Links = %v, want none for non-HTML content", result.Links)
	}
	if result.Title != "" {
		t.Errorf("Title = %q, want empty for non-HTML content", result.Title)
	}
	if result.ContentHash == "" {
		t.Error("ContentHash empty; non-HTML bodies still get fingerprinted")
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		code         int
		wantStatus   model.FetchStatus
		wantTerminal bool
	}{
		{200, model.StatusOk, false},
		{204, model.StatusOk, false},
		{403, model.StatusBlocked, true},
		{429, model.StatusBlocked, true},
		{451, model.StatusBlocked, true},
		{404, model.StatusError, true},
		{500, model.StatusError, true},
		{502, model.StatusError, true},
	}

	for _, tc := range testCases {
		status, terminal := classifyHTTPStatus(tc.code)
		if status != tc.wantStatus || terminal != tc.wantTerminal {
			t.Errorf("classifyHTTPStatus(%d) = %s, %v, want %s, %v",
				tc.code, status, terminal, tc.wantStatus, tc.wantTerminal)
		}
	}
}
