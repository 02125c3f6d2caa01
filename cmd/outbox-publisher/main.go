package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/void1100/Bank-management-system/internal/bootstrap"
	"github.com/void1100/Bank-management-system/pkg/eventbus"
	"github.com/void1100/Bank-management-system/pkg/metrics"
	"github.com/void1100/Bank-management-system/pkg/outbox"
	"github.com/void1100/Bank-management-system/pkg/outbox/registry"
)

func main() {
	rt, err := bootstrap.Open(context.Background(), bootstrap.Options{Service: publisherName, Redis: true})
	if err != nil {
		os.Exit(1)
	}
	defer rt.Close()

	ctx, stop := rt.SignalContext()
	defer stop()
	cfg := rt.Config
	ctx = rt.Logger.WithField(ctx, "broker", cfg.Eventing.Broker)

	routes, err := registry.New(cfg.Eventing)
	if err != nil {
		rt.Fatal(ctx, "failed to build event routes", err)
	}
	broker, err := eventbus.New(ctx, cfg, routes.Topics(), rt.Logger)
	if err != nil {
		rt.Fatal(ctx, "failed to bootstrap event broker", err)
	}
	rt.OnClose("event broker", broker.Close)

	dedupe, err := outbox.NewDeduper(rt.Redis, publisherName, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		rt.Fatal(ctx, "failed to create delivery deduper", err)
	}

	service, err := NewService(ServiceParams{
		Config:  cfg.Outbox,
		Logger:  rt.Logger,
		DB:      rt.DB,
		Broker:  broker,
		Store:   outbox.NewRepository(rt.DB.DB()),
		Routes:  routes,
		Dedupe:  dedupe,
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create outbox publisher", err)
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "outbox publisher shutting down gracefully")
}
