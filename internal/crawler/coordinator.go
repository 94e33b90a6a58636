package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"holocron/internal/metrics"
)

// ErrNoProgress is returned when every worker exited without processing a
// single URL, which indicates a systemic failure rather than a bad crawl.
var ErrNoProgress = errors.New("crawl made no progress")

// CoordinatorConfig controls the worker pool and shutdown behavior.
type CoordinatorConfig struct {
	Workers int
	// SeedURLs are enqueued at depth 0 before the pool starts.
	SeedURLs []string
	// ShutdownTimeout bounds the wait for workers to exit after a stop is
	// requested, as a safety net against a wedged worker.
	ShutdownTimeout time.Duration
	Worker          WorkerConfig
}

func (c *CoordinatorConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Report summarizes a finished crawl run.
type Report struct {
	Elapsed     time.Duration
	URLsScraped int64
	URLsFailed  int64
	PerSecond   float64
	Counts      Counts
	Errors      []string
}

// Coordinator owns the worker pool, the shared stop signal, and the final
// statistics. One Coordinator drives exactly one crawl run.
type Coordinator struct {
	frontier  Frontier
	fetcher   Fetcher
	extractor *Extractor
	records   RecordStore
	stats     *Stats
	clock     Clock
	cfg       CoordinatorConfig
	state     atomic.Int32
	logger    *zap.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(
	frontier Frontier,
	fetcher Fetcher,
	extractor *Extractor,
	records RecordStore,
	stats *Stats,
	clock Clock,
	cfg CoordinatorConfig,
	logger *zap.Logger,
) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		frontier:  frontier,
		fetcher:   fetcher,
		extractor: extractor,
		records:   records,
		stats:     stats,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() RunState {
	return RunState(c.state.Load())
}

// Run seeds the frontier, fans out the worker pool, and blocks until the
// crawl terminates via idle timeout, external cancellation, or all workers
// exiting. The returned Report is valid even when err is non-nil.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	crawlCtx, requestStop := context.WithCancel(ctx)
	defer requestStop()

	if err := c.seed(ctx); err != nil {
		c.state.Store(int32(StateStopped))
		return Report{}, err
	}

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		w := NewWorker(
			i,
			c.frontier,
			c.fetcher,
			c.extractor,
			c.records,
			c.stats,
			c.clock,
			c.cfg.Worker,
			requestStop,
			c.logger,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()
			w.Run(crawlCtx)
		}()
	}
	c.logger.Info("crawl started", zap.Int("workers", c.cfg.Workers), zap.Int("seeds", len(c.cfg.SeedURLs)))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All workers exited on their own.
	case <-crawlCtx.Done():
		// External interrupt, or a worker observed the idle timeout.
	}

	c.state.Store(int32(StateStopRequested))
	requestStop()

	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownTimeout):
		c.logger.Warn("workers did not exit before shutdown timeout",
			zap.Duration("timeout", c.cfg.ShutdownTimeout))
	}
	c.state.Store(int32(StateStopped))

	report := c.report(context.WithoutCancel(ctx))
	if ctx.Err() == nil && report.URLsScraped == 0 && report.URLsFailed == 0 {
		return report, ErrNoProgress
	}
	return report, nil
}

func (c *Coordinator) seed(ctx context.Context) error {
	if err := c.frontier.Reset(ctx); err != nil {
		return fmt.Errorf("reset frontier: %w", err)
	}
	added := 0
	for _, u := range c.cfg.SeedURLs {
		inserted, err := c.frontier.EnqueueIfAbsent(ctx, u, 0)
		if err != nil {
			return fmt.Errorf("seed frontier: %w", err)
		}
		if inserted {
			added++
		}
	}
	c.logger.Info("frontier seeded", zap.Int("urls", added))
	return nil
}

func (c *Coordinator) report(ctx context.Context) Report {
	snap := c.stats.Snapshot()
	elapsed := c.clock.Now().Sub(snap.StartTime)

	counts, err := c.frontier.Counts(ctx)
	if err != nil {
		c.logger.Warn("frontier counts unavailable", zap.Error(err))
	}

	rate := 0.0
	if elapsed > 0 {
		rate = float64(snap.URLsScraped) / elapsed.Seconds()
	}
	return Report{
		Elapsed:     elapsed,
		URLsScraped: snap.URLsScraped,
		URLsFailed:  snap.URLsFailed,
		PerSecond:   rate,
		Counts:      counts,
		Errors:      snap.Errors,
	}
}
