package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/emberline/storefront-backend/internal/catalog"
	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/internal/media"
	"github.com/emberline/storefront-backend/pkg/config"
	"github.com/emberline/storefront-backend/pkg/db"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/migrate"
	"github.com/emberline/storefront-backend/pkg/redis"
	"github.com/emberline/storefront-backend/pkg/storage/blob"
)

func main() {
	dir := flag.String("dir", "", "directory holding the batch descriptor and image folder")
	flag.Parse()
	if *dir == "" && flag.NArg() > 0 {
		*dir = flag.Arg(0)
	}

	logg := logger.New(logger.Options{ServiceName: "ingest"})
	ctx := context.Background()

	if *dir == "" {
		logg.Error(ctx, "no batch directory given, pass -dir or a positional argument", nil)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "ingest",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "migrations", err)

	blobClient, err := blob.NewClient(cfg.Storage, logg)
	requireResource(ctx, logg, "blob storage", err)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer redisClient.Close()
	}

	var mediaSvc *media.Service
	if redisClient != nil {
		mediaSvc, err = media.NewService(blobClient, redisClient, cfg.Storage, logg, nil)
	} else {
		mediaSvc, err = media.NewService(blobClient, nil, cfg.Storage, logg, nil)
	}
	requireResource(ctx, logg, "media service", err)

	var seq catalog.Sequence
	if redisClient != nil {
		seq = catalog.NewRedisSequence(redisClient, cfg.Ingest.SequenceName, cfg.Ingest.SequenceOrigin)
	} else {
		logg.Warn(ctx, "redis not configured, assigning identifiers from a process-local sequence")
		seq = catalog.NewLocalSequence(cfg.Ingest.SequenceOrigin)
	}

	pipeline, err := catalog.NewPipeline(mediaSvc, docstore.NewRepository(dbClient.DB()), seq, cfg.Ingest, logg, nil)
	requireResource(ctx, logg, "ingestion pipeline", err)

	report, err := pipeline.Ingest(ctx, *dir)
	if err != nil {
		logg.Error(ctx, "batch rejected", err)
		os.Exit(1)
	}

	for _, out := range report.Outcomes {
		if out.Failed() {
			fmt.Fprintf(os.Stderr, "FAILED  %s (%s): %v\n", out.Name, out.Reason, out.Err)
			continue
		}
		fmt.Printf("ok      %s -> %s\n", out.Name, out.Key)
	}
	fmt.Printf("batch %s: %d succeeded, %d failed in %s\n",
		report.BatchID, report.Succeeded(), report.Failed(), report.Duration)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
