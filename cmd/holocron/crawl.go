package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"holocron/internal/clock/system"
	"holocron/internal/config"
	"holocron/internal/crawler"
	"holocron/internal/id/uuid"
	"holocron/internal/logging"
	"holocron/internal/metrics"
	memstore "holocron/internal/storage/memory"
	redisstore "holocron/internal/storage/redis"
)

func newCrawlCmd() *cobra.Command {
	var seeds []string
	var workers int

	cmd := &cobra.Command{
		Use:   "crawl [urls...]",
		Short: "Starts the crawl",
		Long: `Seeds the frontier and runs the worker pool until the idle timeout
fires or an interrupt is received. Positional arguments override the
configured seed URLs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds = args
			return runCrawl(cmd.Context(), seeds, workers)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (overrides config)")
	return cmd
}

func runCrawl(parent context.Context, seedArgs []string, workerOverride int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if workerOverride > 0 {
		cfg.Crawler.Workers = workerOverride
	}
	if len(seedArgs) > 0 {
		cfg.Crawler.SeedURLs = seedArgs
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", runID))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	scorer := crawler.NewScorer(cfg.Crawler.RootURL)

	var frontier crawler.Frontier
	var records crawler.RecordStore
	switch cfg.Frontier.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr: cfg.Frontier.RedisAddr,
			DB:   cfg.Frontier.RedisDB,
		})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable at %s: %w", cfg.Frontier.RedisAddr, err)
		}
		frontier = redisstore.NewFrontier(client, cfg.Frontier.KeyPrefix, scorer.Score)
		rs := redisstore.NewRecordStore(client, cfg.Frontier.KeyPrefix, cfg.Crawler.RootURL)
		if err := rs.Reset(ctx); err != nil {
			return err
		}
		records = rs
	case "memory":
		frontier = memstore.NewFrontier(scorer.Score)
		records = memstore.NewRecordStore()
	}

	if cfg.Metrics.Enabled {
		metrics.NewServer(cfg.Metrics.Addr, logger).Start(ctx)
	}

	fetcher := crawler.NewHTTPFetcher(crawler.FetcherConfig{
		Timeout:     cfg.HTTPTimeout(),
		Delay:       cfg.PolitenessDelay(),
		MaxRetries:  cfg.HTTP.MaxRetries,
		BackoffBase: cfg.HTTP.BackoffBase,
		UserAgent:   cfg.Crawler.UserAgent,
	}, logger)

	coord := crawler.NewCoordinator(
		frontier,
		fetcher,
		crawler.NewExtractor(cfg.Crawler.RootURL),
		records,
		crawler.NewStats(clock),
		clock,
		crawler.CoordinatorConfig{
			Workers:         cfg.Crawler.Workers,
			SeedURLs:        cfg.Seeds(),
			ShutdownTimeout: cfg.ShutdownTimeout(),
			Worker: crawler.WorkerConfig{
				IdleTimeout:  cfg.IdleTimeout(),
				PollInterval: cfg.PollInterval(),
			},
		},
		logger,
	)

	report, runErr := coord.Run(ctx)
	printReport(report)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func printReport(r crawler.Report) {
	fmt.Println("==================================================")
	fmt.Println("CRAWL STATISTICS")
	fmt.Println("==================================================")
	fmt.Printf("Total runtime:   %.2fs\n", r.Elapsed.Seconds())
	fmt.Printf("URLs scraped:    %d\n", r.URLsScraped)
	fmt.Printf("URLs failed:     %d\n", r.URLsFailed)
	fmt.Printf("Average rate:    %.2f URLs/second\n", r.PerSecond)
	fmt.Println()
	fmt.Println("Frontier status:")
	fmt.Printf("  Pending:       %d\n", r.Counts.Pending)
	fmt.Printf("  Completed:     %d\n", r.Counts.Completed)
	fmt.Printf("  Failed:        %d\n", r.Counts.Failed)
	if len(r.Errors) > 0 {
		fmt.Printf("\nRecent errors (%d):\n", len(r.Errors))
		tail := r.Errors
		if len(tail) > 5 {
			tail = tail[len(tail)-5:]
		}
		for _, e := range tail {
			fmt.Printf("  %s\n", e)
		}
	}
	fmt.Println("==================================================")
}
