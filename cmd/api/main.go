package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emberline/storefront-backend/api/routes"
	"github.com/emberline/storefront-backend/internal/catalog"
	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/internal/media"
	"github.com/emberline/storefront-backend/internal/products"
	"github.com/emberline/storefront-backend/pkg/config"
	"github.com/emberline/storefront-backend/pkg/db"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/metrics"
	"github.com/emberline/storefront-backend/pkg/migrate"
	"github.com/emberline/storefront-backend/pkg/redis"
	"github.com/emberline/storefront-backend/pkg/storage/blob"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, release-gate cache and shared ID sequence disabled")
	}

	blobClient, err := blob.NewClient(cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap blob storage", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	resolverMetrics := metrics.NewResolverMetrics(registry)
	ingestMetrics := metrics.NewIngestMetrics(registry)

	var mediaSvc *media.Service
	if redisClient != nil {
		mediaSvc, err = media.NewService(blobClient, redisClient, cfg.Storage, logg, resolverMetrics)
	} else {
		mediaSvc, err = media.NewService(blobClient, nil, cfg.Storage, logg, resolverMetrics)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create media service", err)
		os.Exit(1)
	}

	docs := docstore.NewRepository(dbClient.DB())

	var seq catalog.Sequence
	if redisClient != nil {
		seq = catalog.NewRedisSequence(redisClient, cfg.Ingest.SequenceName, cfg.Ingest.SequenceOrigin)
	} else {
		seq = catalog.NewLocalSequence(cfg.Ingest.SequenceOrigin)
	}

	pipeline, err := catalog.NewPipeline(mediaSvc, docs, seq, cfg.Ingest, logg, ingestMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create ingestion pipeline", err)
		os.Exit(1)
	}

	productsSvc, err := products.NewService(docs, mediaSvc, logg, cfg.Ingest.Parallelism)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		DB:       dbClient,
		Blobs:    blobClient,
		Products: productsSvc,
		Pipeline: pipeline,
		Attacher: productsSvc,
		Registry: registry,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
