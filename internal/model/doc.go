// Package model defines the core data types shared across the crawl engine:
// crawl targets, fetch results, fingerprints, and crawl statistics.
//
// Types in this package are plain values with no behavior beyond
// construction and hashing. Ownership rules (who may mutate what) are
// documented on each type and enforced by the components that hold them,
// not by this package.
package model
