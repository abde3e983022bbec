package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/api"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/auth"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/config"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/domain"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/outbox"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/persistence/memory"
	persistence "github.com/baldellimtt/gestionale-capoferri-sub001/internal/persistence/postgres"
	httptransport "github.com/baldellimtt/gestionale-capoferri-sub001/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	logger := observability.NewLogger("api", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		service    *domain.Service
		dispatcher *outbox.Dispatcher
	)
	switch cfg.Storage {
	case config.StorageMemory:
		repo := memory.NewRepository()
		service = domain.NewService(repo, repo)
		logger.Warn("using in-memory storage, data is lost on exit")
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("connect to postgres", "err", err)
		}
		defer pool.Close()

		repo := persistence.NewRepository(pool)
		service = domain.NewService(repo, repo)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.WithPrefix("outbox")))
		go dispatcher.Start(ctx)
	}

	handler := api.NewHandler(service, api.WithLogger(logger))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	root := httptransport.RequestLogger(logger, authMiddleware.Wrap(mux))

	if err := httptransport.Run(ctx, httptransport.DefaultServerConfig(cfg.HTTPAddress), root, logger); err != nil {
		logger.Error("server stopped", "err", err)
	}
	stop()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	logger.Info("shutdown complete")
}
