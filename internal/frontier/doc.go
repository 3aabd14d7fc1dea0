// Package frontier implements the crawl frontier: a bounded,
// deduplicated, priority-ordered queue of pending targets.
//
// Ordering is depth-first-priority (lower discovery depth wins), then
// explicit priority, then insertion order. The queue is stable, so
// breadth-first exploration dominates within a priority band. When full,
// the lowest-priority entry is evicted in favour of higher-priority
// pushes; this lossy-under-pressure policy is deliberate and every drop
// is counted.
package frontier
