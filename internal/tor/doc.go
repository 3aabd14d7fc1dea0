// Package tor provides connectivity to the Tor network for the crawl
// engine.
//
// It contains:
//   - Client: SOCKS5 proxy access with proxy verification
//   - isolated dialers: one Tor circuit per SOCKS5 credential pair,
//     which is how the circuit pool gets independent circuits out of a
//     single Tor daemon
//   - EmbeddedTor: optional embedded Tor daemon via tornago
//   - onion address validation and extraction
//
// The package implements circuit.Channel so the circuit manager never
// depends on Tor details directly.
package tor
