package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/void1100/Bank-management-system/internal/bootstrap"
	"github.com/void1100/Bank-management-system/internal/cron"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/metrics"
	"github.com/void1100/Bank-management-system/pkg/outbox"
)

const serviceName = "cron-worker"

func main() {
	rt, err := bootstrap.Open(context.Background(), bootstrap.Options{Service: serviceName, Redis: true})
	if err != nil {
		os.Exit(1)
	}
	defer rt.Close()

	ctx, stop := rt.SignalContext()
	defer stop()

	service, err := buildService(rt)
	if err != nil {
		rt.Fatal(ctx, "failed to create cron service", err)
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "cron worker shutting down gracefully")
}

func buildService(rt *bootstrap.Runtime) (*cron.Service, error) {
	cfg, conn := rt.Config, rt.DB.DB()

	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(serviceName), cron.LockTTLFor(cfg.Cron.Interval))
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewPurgeJob("outbox-retention", outbox.NewRepository(conn).PurgePublished, cfg.Outbox.Retention, rt.Logger)
	if err != nil {
		return nil, err
	}
	otpJob, err := cron.NewPurgeJob("otp-retention", otp.NewRepository(conn).DeleteStale, cfg.OTP.Retention, rt.Logger)
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(outboxJob, otpJob)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:     rt.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
}
