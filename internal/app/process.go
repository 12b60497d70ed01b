package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/archivist/internal/cli"
	"horse.fit/archivist/internal/config"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/logging"
	"horse.fit/archivist/internal/pipeline"
	eventschema "horse.fit/archivist/schema"
)

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "Path to an upload event JSON file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Batch processing timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *file == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
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

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
		return 1
	}
	event, err := eventschema.ValidateUploadEvent(json.RawMessage(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid upload event: %v\n", err)
		return 1
	}

	events := make([]pipeline.Event, 0, len(event.Records))
	for i, record := range event.Records {
		organizationID, fileID, err := eventschema.DecodeKey(record.S3.Object.Key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid record %d: %v\n", i, err)
			return 1
		}
		eventTime, err := record.Time()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid record %d: %v\n", i, err)
			return 1
		}
		events = append(events, pipeline.Event{
			EventTime:      eventTime,
			Bucket:         record.S3.Bucket.Name,
			Key:            record.S3.Object.Key,
			Size:           record.S3.Object.Size,
			OrganizationID: organizationID,
			FileID:         fileID,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("process failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc, err := buildServices(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("process failed to build services")
		fmt.Fprintf(os.Stderr, "Failed to build services: %v\n", err)
		return 1
	}

	results := svc.ingest.ProcessBatch(ctx, events)

	failed := 0
	for _, result := range results {
		switch {
		case result.Failed():
			failed++
			fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", result.Event.Key, result.Err)
		case result.Result.Deduplicated:
			fmt.Printf("DUPLICATE %s document=%s assertion=%s\n",
				result.Event.Key, result.Result.DocumentID, result.Result.AssertionCID)
		default:
			fmt.Printf("OK %s document=%s assertion=%s\n",
				result.Event.Key, result.Result.DocumentID, result.Result.AssertionCID)
			if result.Result.IndexErr != nil {
				fmt.Fprintf(os.Stderr, "WARN %s: index upsert failed: %v\n",
					result.Event.Key, result.Result.IndexErr)
			}
		}
	}

	fmt.Printf("process records=%d failed=%d\n", len(results), failed)
	if failed > 0 {
		return 1
	}
	return 0
}
