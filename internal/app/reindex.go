package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/archivist/internal/cli"
	"horse.fit/archivist/internal/config"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/logging"
	"horse.fit/archivist/internal/reindex"
)

func runReindex(args []string) int {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Reindex run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if cfg.ElasticURL == "" {
		fmt.Fprintln(os.Stderr, "reindex requires ELASTIC_URL to be set")
		return 2
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("reindex failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc, err := buildServices(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("reindex failed to build services")
		fmt.Fprintf(os.Stderr, "Failed to build services: %v\n", err)
		return 1
	}

	stats, err := reindex.New(svc.content, svc.records, svc.indexer, logger).Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reindex run failed")
		fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
		return 1
	}

	logger.Info().
		Int("indexed", stats.Indexed).
		Int("skipped", stats.Skipped).
		Msg("reindex complete")
	fmt.Printf("reindex indexed=%d skipped=%d\n", stats.Indexed, stats.Skipped)
	return 0
}
