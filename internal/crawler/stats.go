package crawler

import (
	"sync"
	"time"
)

// defaultErrorLogSize bounds the per-run error log to the most recent N.
const defaultErrorLogSize = 50

// Stats is the process-wide crawl statistics block. All mutations happen
// under a single lock; Snapshot returns a consistent copy for reporting.
type Stats struct {
	mu            sync.Mutex
	startTime     time.Time
	lastDiscovery time.Time
	urlsScraped   int64
	urlsFailed    int64
	errors        []string
	maxErrors     int
	clock         Clock
}

// StatsSnapshot is a consistent read of Stats.
type StatsSnapshot struct {
	StartTime     time.Time
	LastDiscovery time.Time
	URLsScraped   int64
	URLsFailed    int64
	Errors        []string
}

// NewStats initializes a Stats block; both timestamps start at now.
func NewStats(clock Clock) *Stats {
	now := clock.Now()
	return &Stats{
		startTime:     now,
		lastDiscovery: now,
		maxErrors:     defaultErrorLogSize,
		clock:         clock,
	}
}

// RecordScraped increments the success counter.
func (s *Stats) RecordScraped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlsScraped++
}

// RecordFailure increments the failure counter and appends to the bounded
// error log, evicting the oldest entry when full.
func (s *Stats) RecordFailure(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlsFailed++
	s.errors = append(s.errors, msg)
	if len(s.errors) > s.maxErrors {
		s.errors = s.errors[len(s.errors)-s.maxErrors:]
	}
}

// MarkDiscovery records that new URLs entered the frontier. This timestamp
// is the input to the idle-timeout termination policy.
func (s *Stats) MarkDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDiscovery = s.clock.Now()
}

// IdleFor returns how long it has been since the last discovery.
func (s *Stats) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Sub(s.lastDiscovery)
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]string, len(s.errors))
	copy(errs, s.errors)
	return StatsSnapshot{
		StartTime:     s.startTime,
		LastDiscovery: s.lastDiscovery,
		URLsScraped:   s.urlsScraped,
		URLsFailed:    s.urlsFailed,
		Errors:        errs,
	}
}
