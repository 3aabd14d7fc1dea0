// Package engine contains the crawl orchestrator: the scheduler that
// ties the frontier, circuit pool, fetcher, and stores together.
//
// A fixed-size worker pool pulls targets from the frontier. Each target
// moves through a strictly sequential state machine
// (queued → dispatched → fetched → parsed → persisted, or failed), while
// targets themselves are processed concurrently with no ordering
// guarantees between them.
//
// Failure policy: per-target failures never abort the crawl; they are
// counted, logged, and retried within the target's retry budget.
// Pool-wide circuit exhaustion and an unreachable store abort the crawl
// with distinguishable errors.
package engine
