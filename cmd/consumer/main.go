package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/osama1998H/lume-sub000/internal/config"
	"github.com/osama1998H/lume-sub000/internal/consumer"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("timeline audit consumer: %v", err)
	}
}

// run records every catalogued timeline event into the audit log until ctx ends.
func run(ctx context.Context, cfg config.Config) error {
	topics, err := consumer.Subscriptions(cfg.ConsumerTopics)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	audit := consumer.NewAuditHandler(pool)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("audit consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range topics {
		reader := kafka.NewReader(consumer.ReaderConfig(cfg.KafkaBrokers, cfg.ConsumerGroup, topic))
		logger := log.New(log.Writer(), "[audit "+topic+"] ", log.LstdFlags|log.Lshortfile)
		proc := consumer.NewProcessor(reader, audit, consumer.WithLogger(logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			logger.Printf("reading timeline events (group=%s)", cfg.ConsumerGroup)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("stopped with error: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("audit consumer shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	wg.Wait()
	return nil
}
