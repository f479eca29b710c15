// Package main wires the inventory service: JetStream event store, Postgres
// read model, catch-up projection, broker gateway, and the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SE121-UIT/inventory-service/adapters/api"
	"github.com/SE121-UIT/inventory-service/adapters/nats"
	"github.com/SE121-UIT/inventory-service/adapters/postgres"
	promadapter "github.com/SE121-UIT/inventory-service/adapters/prometheus"
	"github.com/SE121-UIT/inventory-service/core/broker"
	"github.com/SE121-UIT/inventory-service/core/cart"
	"github.com/SE121-UIT/inventory-service/core/es"
	"github.com/SE121-UIT/inventory-service/core/inventory"
	"github.com/SE121-UIT/inventory-service/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(ctx, log, config.Load()); err != nil {
		log.Error("service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg config.Config) error {
	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	esMetrics := promadapter.NewESMetrics(reg)

	// Postgres: read model and checkpoints
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	rows := postgres.NewRowStore(db)
	checkpoints := postgres.NewCheckpointStore(db)

	// Event registry
	registry := es.NewRegistry()
	if err := inventory.RegisterEvents(registry); err != nil {
		return err
	}

	// JetStream event store; all NATS users share one connection
	connect := nats.ReuseConnection(nats.ConnectURL(cfg.NatsURL))
	store, err := nats.NewEventStore(nats.EventStoreConfig{
		Connect:       connect,
		Log:           log,
		StreamName:    cfg.StreamName,
		SubjectPrefix: cfg.SubjectPrefix,
	})
	if err != nil {
		return fmt.Errorf("event store: %w", err)
	}
	defer store.Close()

	// Domain service and projection
	svc := inventory.NewService(log, store, registry, es.WithMetrics(esMetrics))
	projection := inventory.NewProjection(log, rows)

	sub := es.NewCatchUpSubscription(
		cfg.SubscriptionID,
		store,
		registry,
		checkpoints,
		[]es.Projection{projection},
		es.WithLog(log),
		es.WithMetrics(esMetrics),
	)
	if err := sub.Start(ctx); err != nil {
		return fmt.Errorf("start subscription: %w", err)
	}
	defer sub.Stop()

	// Broker gateway
	gateway, err := broker.NewGateway(broker.GatewayConfig{
		Log:        log,
		RoutingKey: cfg.RoutingKey,
		Rows:       rows,
		Carts:      cart.NewOrchestrator(log, rows, svc),
		Connect: func(ctx context.Context) (broker.Channel, error) {
			return nats.NewChannel(nats.ChannelConfig{
				Connect:  connect,
				Log:      log,
				Exchange: cfg.Exchange,
			})
		},
	})
	if err != nil {
		return err
	}
	if err := gateway.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	defer gateway.Close()

	// HTTP servers
	app := api.NewApp(log, svc, rows)
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.NewRouter(app)}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() {
		log.Info("api listening", slog.String("addr", cfg.HTTPAddr))
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		log.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	case <-sub.Done():
		return errors.New("subscription stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown", slog.Any("error", err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", slog.Any("error", err))
	}
	return nil
}
