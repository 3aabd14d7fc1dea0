// Package store provides SQLite-backed persistence for the crawl engine:
// the dedup/fingerprint store and the link-graph writer.
//
// Both live in one database file so a crawl session is a single artifact
// that can be copied, inspected, and replayed. The dedup store is
// append-only; the graph is upsert-only with monotonic last-seen and
// occurrence counters. Nothing in this package ever deletes crawl data.
//
// Concurrency: SQLite serializes writers, so the connection pool is
// capped at one connection and atomicity of check-and-mark comes from
// single INSERT statements, never a read followed by a write.
package store
