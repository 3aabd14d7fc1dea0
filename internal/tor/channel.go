package tor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/onionmap/onionmap/internal/circuit"
)

// CircuitChannel implements circuit.Channel on top of a Tor SOCKS proxy.
//
// A "circuit" here is a SOCKS5 credential pair: Tor's IsolateSOCKSAuth
// routes streams with distinct credentials over distinct circuits, and
// dropping the credentials abandons the circuit. Teardown therefore only
// has to close the handle's idle connections; the Tor daemon expires the
// isolated circuit once no stream uses it.
type CircuitChannel struct {
	client *Client

	// verify enables a SOCKS5 handshake against the proxy for every
	// build. Catches a dead daemon at build time instead of at first
	// fetch.
	verify bool
}

// CircuitChannelOption configures a CircuitChannel.
type CircuitChannelOption func(*CircuitChannel)

// WithBuildVerification toggles the per-build proxy check.
func WithBuildVerification(verify bool) CircuitChannelOption {
	return func(ch *CircuitChannel) {
		ch.verify = verify
	}
}

// NewCircuitChannel creates a circuit control channel over the given Tor
// client.
func NewCircuitChannel(client *Client, opts ...CircuitChannelOption) *CircuitChannel {
	ch := &CircuitChannel{
		client: client,
		verify: true,
	}

	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// Build mints a fresh isolation credential, verifies the proxy is
// reachable, and returns a handle whose HTTP client rides the new
// circuit.
func (ch *CircuitChannel) Build(ctx context.Context) (circuit.Handle, error) {
	id, err := randomCircuitID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate circuit id: %w", err)
	}

	if ch.verify {
		if status := ch.client.CheckConnection(ctx); status != ProxyStatusOK {
			return nil, fmt.Errorf("circuit build failed: %w", status.Error())
		}
	}

	// The credential pair is the isolation key. The password is fixed;
	// only the username needs to differ per circuit.
	dialer, err := ch.client.IsolatedDialer(id, "onionmap")
	if err != nil {
		return nil, fmt.Errorf("failed to create isolated dialer: %w", err)
	}

	return &circuitHandle{
		id:         id,
		httpClient: ch.client.HTTPClient(dialer),
	}, nil
}

// Teardown abandons the circuit by closing the handle's idle
// connections. With no live stream left on the isolation credential, the
// Tor daemon dirties and expires the circuit on its own schedule.
func (ch *CircuitChannel) Teardown(_ context.Context, h circuit.Handle) error {
	h.HTTPClient().CloseIdleConnections()
	return nil
}

// circuitHandle is the concrete circuit.Handle for Tor-backed circuits.
type circuitHandle struct {
	id         string
	httpClient *http.Client
}

// ID implements circuit.Handle.
func (h *circuitHandle) ID() string {
	return h.id
}

// HTTPClient implements circuit.Handle.
func (h *circuitHandle) HTTPClient() *http.Client {
	return h.httpClient
}

// randomCircuitID returns a random 8-byte hex identifier.
// Randomness matters: predictable isolation usernames would let repeated
// runs reuse circuits across process restarts.
func randomCircuitID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
