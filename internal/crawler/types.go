// Package crawler defines the core types and interfaces for the API graph
// crawler: the priority frontier, the fetch/extract pipeline, and the worker
// pool that drives them.
package crawler

import (
	"encoding/json"
	"time"
)

// FrontierItem is a discovered URL awaiting processing. Score is assigned
// once at discovery time and is immutable; Depth is carried explicitly so it
// never has to be re-derived from the score.
type FrontierItem struct {
	URL   string
	Score float64
	Depth int
}

// Record is the unit handed to the sink for each successfully fetched URL.
// Immutable after creation.
type Record struct {
	URL       string          `json:"url"`
	FetchedAt time.Time       `json:"scraped_at"`
	Payload   json.RawMessage `json:"data"`
}

// Counts reports frontier cardinalities at a point in time.
type Counts struct {
	Pending   int64
	Completed int64
	Failed    int64
}

// RunState is the coordinator lifecycle state.
type RunState int32

// Coordinator states. Transitions only move forward.
const (
	StateRunning RunState = iota
	StateStopRequested
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop-requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
