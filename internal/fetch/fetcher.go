package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onionmap/onionmap/internal/circuit"
	"github.com/onionmap/onionmap/internal/model"
	"github.com/onionmap/onionmap/internal/tor"
)

// Default fetch limits. Both are overridable via options; the defaults
// match what onion services typically tolerate.
const (
	// DefaultTimeout is generous because Tor fetches cross several relay
	// hops; clearnet-style timeouts would misclassify most slow services
	// as dead.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBodySize caps response bodies. Large enough for any HTML
	// page that matters to the link graph, small enough that a hostile
	// endless response cannot exhaust memory.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent is a common browser user agent. Crawling through
	// an anonymity network with a distinctive agent string defeats the
	// point.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.127 Safari/537.36"
)

// Fetcher performs single URL fetches through leased circuits.
// Stateless across fetches; one Fetcher serves all workers.
type Fetcher struct {
	// timeout is the hard wall-clock budget per fetch.
	timeout time.Duration

	// maxBodySize is the response byte cap.
	maxBodySize int64

	// userAgent is sent with every request.
	userAgent string

	// onionOnly restricts extracted links to .onion hosts.
	onionOnly bool

	// logger is used for per-fetch debug logging.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the wall-clock budget per fetch.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithMaxBodySize sets the response byte cap.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) { f.maxBodySize = n }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithOnionOnly restricts extracted links to onion hosts.
// On by default: the crawl maps the overlay network, and clearnet links
// would both dilute the graph and leak crawl traffic off Tor.
func WithOnionOnly(onionOnly bool) Option {
	return func(f *Fetcher) { f.onionOnly = onionOnly }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
		onionOnly:   true,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Fetch retrieves the target through the leased circuit and classifies
// the outcome. It never retries and never panics the worker: every
// failure mode maps to a FetchResult status.
//
// The caller keeps the circuit lease for the whole call and is
// responsible for releasing it afterwards, whatever the outcome.
func (f *Fetcher) Fetch(ctx context.Context, target model.Target, c *circuit.Circuit) model.FetchResult {
	start := time.Now()
	result := model.FetchResult{Target: target}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		result.Status = model.StatusError
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		result.Status = classifyTransportError(err)
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")

	if status, terminal := classifyHTTPStatus(resp.StatusCode); terminal {
		result.Status = status
		result.Elapsed = time.Since(start)
		return result
	}

	// Read one byte past the cap so truncation is detectable without
	// trusting Content-Length.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		result.Status = classifyTransportError(err)
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}

	if int64(len(body)) > f.maxBodySize {
		body = body[:f.maxBodySize]
		result.Truncated = true
	}

	result.Body = body
	result.ContentHash = model.ContentFingerprint(body)
	result.Status = model.StatusOk
	f.extractLinks(&result)
	result.Elapsed = time.Since(start)

	f.logger.Debug("fetched",
		"url", target.URL,
		"status", result.Status.String(),
		"http_status", result.HTTPStatus,
		"bytes", len(body),
		"links", len(result.Links),
		"elapsed", result.Elapsed,
	)
	return result
}

// extractLinks parses the body and fills Title and Links.
//
// Parse failures degrade to an empty link set rather than failing the
// fetch, with one exception: if the body was truncated and then failed
// to parse, truncation prevented a full parse and the result is Blocked.
func (f *Fetcher) extractLinks(result *model.FetchResult) {
	if !isHTML(result.ContentType) {
		return
	}

	parser, err := NewParser(result.Target.URL)
	if err != nil {
		return
	}

	parsed, err := parser.Parse(bytes.NewReader(result.Body))
	if err != nil {
		if result.Truncated {
			result.Status = model.StatusBlocked
			result.Err = err
		}
		return
	}

	result.Title = parsed.Title
	result.Links = f.filterLinks(parsed.Links)
}

// filterLinks applies the onion-only policy.
func (f *Fetcher) filterLinks(links []string) []string {
	if !f.onionOnly {
		return links
	}

	kept := links[:0]
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if tor.IsOnionHost(u.Hostname()) {
			kept = append(kept, link)
		}
	}
	return kept
}

// classifyTransportError maps a transport-level error to a fetch status.
func classifyTransportError(err error) model.FetchStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.StatusTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.StatusTimeout
	}

	// url.Error wraps the context error on client timeouts.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return model.StatusTimeout
	}

	return model.StatusError
}

// classifyHTTPStatus maps a response code to a terminal fetch status.
// Returns terminal=false for codes whose body should still be consumed.
func classifyHTTPStatus(code int) (model.FetchStatus, bool) {
	switch {
	case code >= 200 && code < 300:
		return model.StatusOk, false
	case code == http.StatusForbidden,
		code == http.StatusTooManyRequests,
		code == http.StatusUnavailableForLegalReasons:
		// The service refused us. Retrying through a fresh circuit
		// rarely helps and hammers the service; terminal.
		return model.StatusBlocked, true
	default:
		// 4xx gone/not-found, 5xx, stray 3xx after the redirect cap.
		return model.StatusError, true
	}
}

// isHTML reports whether a Content-Type names an HTML document.
func isHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml+xml")
}
