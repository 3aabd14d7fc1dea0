package report

import "time"

// Summary aggregates the outcome of one crawl run: what was fetched,
// what failed, and what the graph looks like afterward.
type Summary struct {
	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock length of the crawl.
	Duration time.Duration `json:"duration_seconds"`

	// Seeds is the number of seed URLs the crawl started from.
	Seeds int `json:"seeds"`

	// PagesCrawled counts pages fetched and persisted.
	PagesCrawled int `json:"pages_crawled"`

	// PagesFailed counts pages given up on after exhausting retries.
	PagesFailed int `json:"pages_failed"`

	// Retries counts re-queued fetch attempts.
	Retries int `json:"retries"`

	// URLDuplicates counts links skipped as already known.
	URLDuplicates int `json:"url_duplicates"`

	// ContentDuplicates counts pages whose body matched an earlier page.
	ContentDuplicates int `json:"content_duplicates"`

	// DepthLimited counts links dropped for exceeding the depth limit.
	DepthLimited int `json:"depth_limited"`

	// FrontierEvicted counts queued targets displaced under capacity
	// pressure.
	FrontierEvicted int `json:"frontier_evicted"`

	// FrontierDropped counts discoveries rejected by a full frontier.
	FrontierDropped int `json:"frontier_dropped"`

	// Nodes is the total page count in the graph after the crawl.
	Nodes int `json:"nodes"`

	// Edges is the total link count in the graph after the crawl.
	Edges int `json:"edges"`

	// Hosts is the number of distinct onion hosts in the graph.
	Hosts int `json:"hosts"`

	// EdgesQueued counts edges deferred to the replay queue this run.
	EdgesQueued int `json:"edges_queued"`

	// PendingReplay is the replay queue length after the crawl.
	PendingReplay int `json:"pending_replay"`

	// CircuitsBuilt counts circuits constructed during the crawl.
	CircuitsBuilt int `json:"circuits_built"`

	// CircuitsRotated counts circuits replaced for failures or age.
	CircuitsRotated int `json:"circuits_rotated"`
}
