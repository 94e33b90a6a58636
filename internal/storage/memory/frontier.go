// Package memory provides in-process frontier and record store
// implementations for single-node deployments and tests.
package memory

import (
	"container/heap"
	"context"
	"sync"

	"holocron/internal/crawler"
)

// Frontier is a mutex-guarded priority queue plus completed/failed sets.
// One lock covers every check-then-insert sequence, so the atomicity
// contract holds without a backing service.
type Frontier struct {
	mu        sync.Mutex
	score     crawler.ScoreFunc
	pending   itemHeap
	inPending map[string]struct{}
	completed map[string]struct{}
	failed    map[string]struct{}
}

// NewFrontier constructs an empty in-memory frontier. score is invoked under
// the frontier lock, only when an insertion actually occurs.
func NewFrontier(score crawler.ScoreFunc) *Frontier {
	return &Frontier{
		score:     score,
		inPending: make(map[string]struct{}),
		completed: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}
}

// EnqueueIfAbsent inserts url unless it is already pending or completed.
func (f *Frontier) EnqueueIfAbsent(_ context.Context, url string, depth int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.completed[url]; ok {
		return false, nil
	}
	if _, ok := f.inPending[url]; ok {
		return false, nil
	}
	item := crawler.FrontierItem{URL: url, Score: f.score(url, depth), Depth: depth}
	heap.Push(&f.pending, item)
	f.inPending[url] = struct{}{}
	return true, nil
}

// PopMin removes and returns the lowest-score item.
func (f *Frontier) PopMin(_ context.Context) (crawler.FrontierItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending.Len() == 0 {
		return crawler.FrontierItem{}, false, nil
	}
	item := heap.Pop(&f.pending).(crawler.FrontierItem)
	delete(f.inPending, item.URL)
	return item, true, nil
}

// MarkCompleted records url as processed. Idempotent.
func (f *Frontier) MarkCompleted(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[url] = struct{}{}
	return nil
}

// MarkFailed records url as permanently failed. Idempotent.
func (f *Frontier) MarkFailed(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[url] = struct{}{}
	return nil
}

// IsCompleted reports completed-set membership.
func (f *Frontier) IsCompleted(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.completed[url]
	return ok, nil
}

// Counts returns current cardinalities.
func (f *Frontier) Counts(_ context.Context) (crawler.Counts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return crawler.Counts{
		Pending:   int64(f.pending.Len()),
		Completed: int64(len(f.completed)),
		Failed:    int64(len(f.failed)),
	}, nil
}

// Reset clears all state from a previous run.
func (f *Frontier) Reset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	f.inPending = make(map[string]struct{})
	f.completed = make(map[string]struct{})
	f.failed = make(map[string]struct{})
	return nil
}

// itemHeap is a min-heap of frontier items ordered by score.
type itemHeap []crawler.FrontierItem

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)         { *h = append(*h, x.(crawler.FrontierItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
