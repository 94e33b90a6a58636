package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"holocron/internal/metrics"
)

// WorkerConfig controls the per-worker control loop.
type WorkerConfig struct {
	// IdleTimeout ends the crawl when no new URLs have been discovered for
	// this long and the frontier is empty.
	IdleTimeout time.Duration
	// PollInterval is the sleep between polls of an empty frontier.
	PollInterval time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// Worker runs the pop-fetch-extract-enqueue loop until the context finishes
// or the idle-timeout policy fires.
type Worker struct {
	id          int
	frontier    Frontier
	fetcher     Fetcher
	extractor   *Extractor
	records     RecordStore
	stats       *Stats
	clock       Clock
	cfg         WorkerConfig
	requestStop context.CancelFunc
	logger      *zap.Logger
}

// NewWorker constructs a Worker. requestStop is the shared stop trigger that
// any worker may fire when the idle-timeout condition is observed.
func NewWorker(
	id int,
	frontier Frontier,
	fetcher Fetcher,
	extractor *Extractor,
	records RecordStore,
	stats *Stats,
	clock Clock,
	cfg WorkerConfig,
	requestStop context.CancelFunc,
	logger *zap.Logger,
) *Worker {
	cfg.applyDefaults()
	return &Worker{
		id:          id,
		frontier:    frontier,
		fetcher:     fetcher,
		extractor:   extractor,
		records:     records,
		stats:       stats,
		clock:       clock,
		cfg:         cfg,
		requestStop: requestStop,
		logger:      logger.With(zap.Int("worker", id)),
	}
}

// Run blocks until the stop signal is observed or the worker decides the
// crawl is finished. Per-URL failures never escape the loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Debug("worker started")
	defer w.logger.Debug("worker finished")

	for {
		if ctx.Err() != nil {
			return
		}

		item, ok, err := w.frontier.PopMin(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The frontier store is required for all further progress, so
			// sleep and retry instead of exiting.
			w.logger.Error("frontier pop failed", zap.Error(err))
			_ = pause(ctx, w.cfg.PollInterval)
			continue
		}
		if !ok {
			if w.stats.IdleFor() > w.cfg.IdleTimeout {
				w.logger.Info("no new URLs within idle timeout, requesting stop",
					zap.Duration("idle_timeout", w.cfg.IdleTimeout))
				w.requestStop()
				return
			}
			if err := pause(ctx, w.cfg.PollInterval); err != nil {
				return
			}
			continue
		}

		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item FrontierItem) {
	// Post-pop recheck: a cheap idempotency guard against the residual race
	// between two workers discovering the same URL.
	done, err := w.frontier.IsCompleted(ctx, item.URL)
	if err != nil {
		w.logger.Error("completed check failed", zap.String("url", item.URL), zap.Error(err))
	} else if done {
		w.logger.Debug("skipping already-completed url", zap.String("url", item.URL))
		return
	}

	body, err := w.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.fail(ctx, item.URL, err)
		return
	}

	links, rec, err := w.extractor.Extract(item.URL, body, w.clock.Now())
	if err != nil {
		w.fail(ctx, item.URL, err)
		return
	}

	if err := w.records.Save(ctx, rec); err != nil {
		w.logger.Error("record save failed", zap.String("url", item.URL), zap.Error(err))
		w.fail(ctx, item.URL, err)
		return
	}

	added := 0
	for _, link := range links {
		inserted, err := w.frontier.EnqueueIfAbsent(ctx, link, item.Depth+1)
		if err != nil {
			w.logger.Error("enqueue failed", zap.String("url", link), zap.Error(err))
			continue
		}
		if inserted {
			added++
			metrics.URLsEnqueued.Inc()
		}
	}
	if added > 0 {
		w.stats.MarkDiscovery()
		w.logger.Info("discovered new urls", zap.String("url", item.URL), zap.Int("count", added))
	}

	if err := w.frontier.MarkCompleted(ctx, item.URL); err != nil {
		w.logger.Error("mark completed failed", zap.String("url", item.URL), zap.Error(err))
	}
	w.stats.RecordScraped()
	metrics.URLsScraped.Inc()
	w.logger.Debug("url processed", zap.String("url", item.URL), zap.Float64("score", item.Score))
}

func (w *Worker) fail(ctx context.Context, url string, cause error) {
	var fe *FetchError
	if errors.As(cause, &fe) {
		w.logger.Warn("url failed",
			zap.String("url", url),
			zap.Int("status", fe.StatusCode),
			zap.Int("attempts", fe.Attempts),
		)
	} else {
		w.logger.Warn("url failed", zap.String("url", url), zap.Error(cause))
	}
	if err := w.frontier.MarkFailed(ctx, url); err != nil {
		w.logger.Error("mark failed failed", zap.String("url", url), zap.Error(err))
	}
	w.stats.RecordFailure(url + ": " + cause.Error())
	metrics.URLsFailed.Inc()
}
