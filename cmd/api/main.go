package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/api"
	"github.com/osama1998H/lume-sub000/internal/auth"
	"github.com/osama1998H/lume-sub000/internal/config"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/outbox"
	"github.com/osama1998H/lume-sub000/internal/persistence/postgres"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
	httptransport "github.com/osama1998H/lume-sub000/internal/transport/http"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

func main() {
	cfg := config.Load()

	strategy, err := reconcile.ParseStrategy(cfg.MergeStrategy)
	if err != nil {
		log.Fatalf("invalid MERGE_STRATEGY: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	go dispatcher.Start(ctx)

	normalizer := activity.NewNormalizer(repo.Sources(), repo)
	validator := validation.NewValidator(repo)
	engine := reconcile.NewEngine(validator)
	commander := reconcile.NewCommander(normalizer, engine, validator, repo)
	service := analytics.NewService(normalizer, repo, repo, analytics.NewAggregator(cfg.Location()))

	handler := api.NewHandler(api.Dependencies{
		Timeline:  normalizer,
		Validator: validator,
		Engine:    engine,
		Commander: commander,
		Analytics: service,
		Defaults: api.Defaults{
			Strategy: strategy,
			Conflicts: conflict.Options{
				DuplicateThreshold: cfg.DuplicateThreshold,
				DuplicateTolerance: cfg.DuplicateTolerance,
				GapMinimum:         cfg.GapMinimum,
			},
			AutoMergeSeconds: cfg.AutoMergeSeconds,
			MaxWindow:        cfg.MaxWindow,
			Location:         cfg.Location(),
		},
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, httptransport.Chain(mux,
		httptransport.RequestLogger(log.Default()),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("timeline api listening on %s (timezone=%s)", cfg.HTTPAddress, cfg.Location())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
