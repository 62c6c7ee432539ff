package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osama1998H/lume-sub000/internal/config"
	"github.com/osama1998H/lume-sub000/internal/outbox"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("dlq manager: %v", err)
	}
}

// run replays dead-lettered timeline events every DLQPollInterval until ctx ends.
// The first pass runs at startup so events parked during downtime are not left waiting.
func run(ctx context.Context, cfg config.Config) error {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("dlq manager metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("dlq manager started (interval=%s, batch=%d, maxRetries=%d, events=%v)",
		cfg.DLQPollInterval, cfg.DLQBatchSize, cfg.DLQMaxRetries, outbox.EventTypes())

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	for {
		report, err := manager.RunOnce(ctx, cfg.DLQBatchSize)
		switch {
		case err != nil:
			log.Printf("dlq pass failed: %v", err)
		case !report.Empty():
			log.Printf("dlq pass: requeued=%d rescheduled=%d quarantined=%d",
				report.Requeued, report.Rescheduled, report.Quarantined)
		}

		select {
		case <-ctx.Done():
			log.Println("dlq manager received shutdown signal")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics server shutdown error: %v", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}
