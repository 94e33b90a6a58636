package crawler

import (
	"strings"
	"sync/atomic"
)

// Priority score layout: type priority dominates, then discovery depth, then
// a global FIFO sequence to break ties. Lower score pops first.
const (
	typeWeight  = 100
	depthWeight = 10
	seqWeight   = 0.001
)

// defaultTypePriorities maps a resource type (first path segment under the
// crawl root) to its coarse priority. Films reference the most resources, so
// they are crawled first; unknown types sort last.
var defaultTypePriorities = map[string]int{
	"films":     1,
	"people":    2,
	"planets":   3,
	"starships": 4,
	"vehicles":  4,
	"species":   5,
}

const unknownTypePriority = 9

// Scorer computes frontier priority scores. The sequence counter is shared
// process-wide and incremented atomically exactly once per scored URL, so
// FIFO order within a priority/depth tier holds regardless of which worker
// discovered the URL.
type Scorer struct {
	rootURL    string
	priorities map[string]int
	seq        atomic.Int64
}

// NewScorer builds a Scorer for URLs under rootURL using the default
// resource-type priority table.
func NewScorer(rootURL string) *Scorer {
	return &Scorer{
		rootURL:    rootURL,
		priorities: defaultTypePriorities,
	}
}

// Score returns the priority score for url discovered at the given depth.
// Deterministic for a given (url, depth, sequence) triple; each call consumes
// one value from the shared sequence counter.
func (s *Scorer) Score(url string, depth int) float64 {
	seq := s.seq.Add(1)
	return float64(s.typePriority(url)*typeWeight) +
		float64(depth*depthWeight) +
		float64(seq)*seqWeight
}

// Sequence returns the number of URLs scored so far.
func (s *Scorer) Sequence() int64 {
	return s.seq.Load()
}

func (s *Scorer) typePriority(url string) int {
	rest := strings.TrimPrefix(url, s.rootURL)
	resource, _, _ := strings.Cut(strings.TrimPrefix(rest, "/"), "/")
	if p, ok := s.priorities[resource]; ok {
		return p
	}
	return unknownTypePriority
}
