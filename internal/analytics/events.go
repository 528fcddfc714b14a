package analytics

import "time"

// EventSearch is the Kafka event-type header for SearchEvent.
const EventSearch = "search"

// SearchEvent describes one served query.
type SearchEvent struct {
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Outcome    string    `json:"outcome"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// ZeroResult reports whether the query had terms but matched nothing.
func (e SearchEvent) ZeroResult() bool {
	return e.Outcome == "matched" && e.TotalHits == 0
}
