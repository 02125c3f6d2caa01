package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/void1100/Bank-management-system/api/routes"
	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/internal/bootstrap"
	"github.com/void1100/Bank-management-system/internal/events"
	"github.com/void1100/Bank-management-system/internal/fraud"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/instance"
	"github.com/void1100/Bank-management-system/pkg/outbox"
)

const (
	serviceName     = "api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	rt, err := bootstrap.Open(context.Background(), bootstrap.Options{Service: serviceName, Redis: true})
	if err != nil {
		os.Exit(1)
	}
	defer rt.Close()

	ctx, stop := rt.SignalContext()
	defer stop()

	handler, err := buildRouter(rt)
	if err != nil {
		rt.Fatal(ctx, "failed to build api", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = rt.Logger.WithField(ctx, "addr", server.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rt.Logger.Error(ctx, "api server shutdown failed", err)
		}
	}()

	rt.Logger.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rt.Fatal(ctx, "api server stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "api server stopped")
}

// buildRouter wires the HTTP surface. The fraud engine here only answers the
// step-up predicate; rule evaluation runs in the worker.
func buildRouter(rt *bootstrap.Runtime) (http.Handler, error) {
	cfg, logg, dbClient := rt.Config, rt.Logger, rt.DB
	conn := dbClient.DB()
	accountsRepo := accounts.NewRepository(conn)
	eventsRepo := events.NewRepository(conn)
	fraudRepo := fraud.NewRepository(conn)
	emitter := outbox.NewWriter(outbox.NewRepository(conn), serviceName+":"+instance.GetID(), logg)

	accountService, err := accounts.NewService(accountsRepo)
	if err != nil {
		return nil, err
	}

	thresholds, err := fraud.ThresholdsFromConfig(cfg.Fraud)
	if err != nil {
		return nil, err
	}
	engine, err := fraud.NewEngine(fraud.EngineParams{
		Repo:       fraudRepo,
		Emitter:    emitter,
		Thresholds: thresholds,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	ledgerService, err := ledger.NewService(dbClient, accountsRepo, ledger.NewRepository(conn), eventsRepo, engine)
	if err != nil {
		return nil, err
	}

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

	fraudService, err := fraud.NewService(fraudRepo, accountService, cfg.Fraud.RecentAlertLimit)
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    rt.Redis,
		Accounts: accountService,
		Ledger:   ledgerService,
		OTP:      gate,
		Fraud:    fraudService,
	}), nil
}
