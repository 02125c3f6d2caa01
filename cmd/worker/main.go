package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/internal/audit"
	"github.com/void1100/Bank-management-system/internal/bootstrap"
	"github.com/void1100/Bank-management-system/internal/dispatcher"
	"github.com/void1100/Bank-management-system/internal/events"
	"github.com/void1100/Bank-management-system/internal/fraud"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/instance"
	"github.com/void1100/Bank-management-system/pkg/metrics"
	"github.com/void1100/Bank-management-system/pkg/outbox"
)

const serviceName = "worker"

func main() {
	rt, err := bootstrap.Open(context.Background(), bootstrap.Options{Service: serviceName, Redis: true})
	if err != nil {
		os.Exit(1)
	}
	defer rt.Close()

	ctx, stop := rt.SignalContext()
	defer stop()

	runner, err := buildDispatcher(rt, prometheus.DefaultRegisterer)
	if err != nil {
		rt.Fatal(ctx, "failed to build dispatcher", err)
	}
	service, err := NewService(ServiceParams{Logger: rt.Logger, Dispatcher: runner, Metrics: rt.MetricsServer()})
	if err != nil {
		rt.Fatal(ctx, "failed to create worker service", err)
	}

	rt.Logger.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "worker stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "worker shutting down gracefully")
}

func buildDispatcher(rt *bootstrap.Runtime, reg prometheus.Registerer) (*dispatcher.Runner, error) {
	cfg, logg, dbClient := rt.Config, rt.Logger, rt.DB
	conn := dbClient.DB()
	accountsRepo := accounts.NewRepository(conn)
	eventsRepo := events.NewRepository(conn)
	emitter := outbox.NewWriter(outbox.NewRepository(conn), serviceName+":"+instance.GetID(), logg)
	dispatcherMetrics := metrics.NewDispatcherMetrics(reg)

	gate, err := otp.NewGate(otp.GateParams{
		Tx:       dbClient,
		Repo:     otp.NewRepository(conn),
		Events:   eventsRepo,
		Accounts: accountsRepo,
		Limiter:  rt.Redis,
		Emitter:  emitter,
		Logger:   logg,
		Config:   cfg.OTP,
	})
	if err != nil {
		return nil, err
	}

	thresholds, err := fraud.ThresholdsFromConfig(cfg.Fraud)
	if err != nil {
		return nil, err
	}
	engine, err := fraud.NewEngine(fraud.EngineParams{
		Repo:       fraud.NewRepository(conn),
		Issuer:     gate,
		Emitter:    emitter,
		Thresholds: thresholds,
		Logger:     logg,
		OnAlert: func(reason enums.AlertReason) {
			dispatcherMetrics.IncAlert(string(reason))
		},
	})
	if err != nil {
		return nil, err
	}

	scorer, err := fraud.NewScorerClient(cfg.Fraud.ScorerURL,
		fraud.WithTimeout(cfg.Fraud.ScorerTimeout),
		fraud.WithLogger(logg),
		fraud.WithResultObserver(dispatcherMetrics.IncScorer),
	)
	if err != nil {
		return nil, err
	}

	executor, err := ledger.NewExecutor(accountsRepo, ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	d, err := dispatcher.New(dispatcher.Params{
		DB:         dbClient,
		Events:     eventsRepo,
		Executor:   executor,
		Engine:     engine,
		Scorer:     scorer,
		Challenges: gate,
		Audit:      audit.NewRepository(conn),
		Emitter:    emitter,
		Logger:     logg,
		Metrics:    dispatcherMetrics,
		Deferral: dispatcher.DeferralPolicy{
			Base:  cfg.Worker.ErrorBackoff,
			Max:   cfg.Worker.MaxBackoff,
			Limit: cfg.Worker.MaxDeferred,
		},
	})
	if err != nil {
		return nil, err
	}

	return dispatcher.NewRunner(dispatcher.RunnerParams{
		Stepper: d,
		DB:      dbClient,
		Logger:  logg,
		Config:  cfg.Worker,
	})
}
