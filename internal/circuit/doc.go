// Package circuit owns the lifecycle of anonymity-network circuits.
//
// The Manager maintains a bounded pool of circuits built through an
// abstract control Channel. Workers lease a circuit for exactly one fetch
// via Acquire, return it with Release, and the manager handles rotation:
// reactively when a circuit crosses its failure threshold, and
// proactively when a circuit exceeds its configured age or use count
// (resisting traffic-correlation profiling).
//
// Pool state is the only shared-mutable state in this package and is
// guarded by a single mutex with condition-variable wakeups. A circuit in
// the Leased state is owned exclusively by one caller until released.
package circuit
