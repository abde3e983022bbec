package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/config"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/consumer"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
	httptransport "github.com/baldellimtt/gestionale-capoferri-sub001/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	logger := observability.NewLogger("consumer", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect to postgres", "err", err)
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
		if err := httptransport.Run(ctx, metricsCfg, promhttp.Handler(), logger.WithPrefix("metrics")); err != nil {
			logger.Error("metrics server", "err", err)
		}
	}()

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger), consumer.WithRetry(5, 500*time.Millisecond))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logger.Info("consumer started", "topic", topic, "group", cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "topic", topic, "err", err)
			}
		}(topic, reader)
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	wg.Wait()
}
