package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"holocron/internal/config"
	"holocron/internal/logging"
	"holocron/internal/sink"
	redisstore "holocron/internal/storage/redis"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports scraped records into PostgreSQL",
		Long: `Streams every record persisted by a previous crawl into a JSONB table,
committing in batches. Recreates the target table before inserting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context())
		},
	}
	return cmd
}

func runExport(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Frontier.Backend != "redis" {
		return fmt.Errorf("export requires the redis backend (records of a memory run do not outlive the process)")
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for export")
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := goredis.NewClient(&goredis.Options{
		Addr: cfg.Frontier.RedisAddr,
		DB:   cfg.Frontier.RedisDB,
	})
	defer func() { _ = client.Close() }()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", cfg.Frontier.RedisAddr, err)
	}
	records := redisstore.NewRecordStore(client, cfg.Frontier.KeyPrefix, cfg.Crawler.RootURL)

	pg, err := sink.NewPostgres(ctx, sink.PostgresConfig{
		DSN:       cfg.Postgres.DSN,
		Table:     cfg.Postgres.Table,
		BatchSize: cfg.Postgres.BatchSize,
	}, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.EnsureTable(ctx); err != nil {
		return err
	}
	inserted, err := pg.Ingest(ctx, records)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d records into %s\n", inserted, cfg.Postgres.Table)
	return nil
}
