// Package log provides secure logging functionality with automatic
// sanitization of sensitive information, built on top of the standard
// slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//   - Compatibility with tornago's slog-based logging
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, Proxy-Authorization)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Tor control port passwords and circuit isolation credentials
//   - Onion service private key material
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// Crawl vocabulary is deliberately NOT masked: "seed" here means a seed
// URL and content hashes are logged on purpose, so neither triggers
// redaction.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("circuit built",
//	    "socks_password", "k3x9...",  // Will be sanitized
//	    "url", "http://example.onion",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
