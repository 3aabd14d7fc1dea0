package frontier

import (
	"container/heap"
	"sync"

	"github.com/onionmap/onionmap/internal/model"
)

// DefaultCapacity bounds the frontier when no capacity is configured.
// The bound exists for backpressure: an unbounded frontier grows without
// limit on link-dense sites and hides scheduling problems behind memory.
const DefaultCapacity = 10000

// PushOutcome reports what happened to a pushed target.
type PushOutcome int

const (
	// Pushed means the target was queued.
	Pushed PushOutcome = iota

	// Duplicate means the target's URL is already queued; the push was a
	// counted no-op.
	Duplicate

	// Dropped means the frontier is full and the target does not outrank
	// the lowest-priority entry.
	Dropped
)

// Stats are cumulative frontier counters.
type Stats struct {
	// Pushed is the number of targets accepted.
	Pushed int

	// Duplicates is the number of pushes ignored as already queued.
	Duplicates int

	// Evicted is the number of queued targets displaced by
	// higher-priority pushes under capacity pressure.
	Evicted int

	// Dropped is the number of pushes rejected because the frontier was
	// full and the target did not outrank anything queued.
	Dropped int
}

// Frontier is a bounded stable priority queue of crawl targets.
//
// Safe for concurrent use; a single mutex guards the heap and the
// in-flight URL set. Pop is non-blocking and returns false when empty;
// the orchestrator owns the wait-for-work loop, not the frontier.
type Frontier struct {
	mu       sync.Mutex
	items    targetHeap
	queued   map[string]struct{}
	capacity int
	seq      uint64
	stats    Stats
}

// New creates a frontier with the given capacity.
// Zero or negative capacity selects DefaultCapacity.
func New(capacity int) *Frontier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Frontier{
		queued:   make(map[string]struct{}),
		capacity: capacity,
	}
}

// Push queues a target.
//
// A push is ignored when the URL is already queued (in-flight dedup; the
// persistent already-crawled check belongs to the dedup store and runs
// before Push). When the frontier is full, the incoming target either
// displaces the lowest-priority entry or is dropped, whichever keeps the
// better target. Every outcome is counted.
func (f *Frontier) Push(t model.Target) PushOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.queued[t.URL]; ok {
		f.stats.Duplicates++
		return Duplicate
	}

	item := &targetItem{target: t, seq: f.seq}
	f.seq++

	if f.items.Len() >= f.capacity {
		worst := f.worstLocked()
		if !item.outranks(worst) {
			f.stats.Dropped++
			return Dropped
		}
		// Evict the worst entry to make room.
		delete(f.queued, worst.target.URL)
		heap.Remove(&f.items, worst.index)
		f.stats.Evicted++
	}

	heap.Push(&f.items, item)
	f.queued[t.URL] = struct{}{}
	f.stats.Pushed++
	return Pushed
}

// Pop removes and returns the highest-priority target.
// Returns false when the frontier is empty.
func (f *Frontier) Pop() (model.Target, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.items.Len() == 0 {
		return model.Target{}, false
	}

	item := heap.Pop(&f.items).(*targetItem)
	delete(f.queued, item.target.URL)
	return item.target, true
}

// Len returns the number of queued targets.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Len()
}

// Stats returns a snapshot of the cumulative counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// worstLocked returns the lowest-priority queued item.
// Linear scan: a heap only orders its root, and overflow is the rare
// path compared to Push/Pop.
func (f *Frontier) worstLocked() *targetItem {
	worst := f.items[0]
	for _, item := range f.items[1:] {
		if worst.outranks(item) {
			worst = item
		}
	}
	return worst
}

// targetItem is a heap entry: a target plus a sequence number that makes
// ordering stable within a priority band.
type targetItem struct {
	target model.Target
	seq    uint64
	index  int
}

// outranks reports whether a should be popped before b:
// lower depth first, then higher explicit priority, then earlier
// insertion.
func (a *targetItem) outranks(b *targetItem) bool {
	if a.target.Depth != b.target.Depth {
		return a.target.Depth < b.target.Depth
	}
	if a.target.Priority != b.target.Priority {
		return a.target.Priority > b.target.Priority
	}
	return a.seq < b.seq
}

// targetHeap implements heap.Interface.
type targetHeap []*targetItem

func (h targetHeap) Len() int { return len(h) }

func (h targetHeap) Less(i, j int) bool { return h[i].outranks(h[j]) }

func (h targetHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *targetHeap) Push(x any) {
	item := x.(*targetItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *targetHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
