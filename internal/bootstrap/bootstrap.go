// Package bootstrap opens the resources shared by every binary: config, the
// leveled logger, the database and optionally redis. Resources are closed in
// reverse order of opening.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db"
	"github.com/void1100/Bank-management-system/pkg/instance"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/metrics"
	"github.com/void1100/Bank-management-system/pkg/migrate"
	"github.com/void1100/Bank-management-system/pkg/redis"
)

type Options struct {
	Service string
	Redis   bool
}

// Runtime is what a binary's main works with after Open.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []closer
}

type closer struct {
	name  string
	close func() error
}

// Load reads .env and the environment and returns a logger at the configured
// level. It never touches the network.
func Load(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = service
	return cfg, logger.New(logger.Options{
		ServiceName: service,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	}), nil
}

// Open loads config and connects. On failure it closes whatever it opened,
// logs the cause and returns it.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, logg, err := Load(opts.Service)
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return nil, err
	}
	rt := &Runtime{Config: cfg, Logger: logg}
	if err := rt.connect(ctx, opts); err != nil {
		logg.Error(ctx, "bootstrap failed", err)
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) connect(ctx context.Context, opts Options) error {
	dbClient, err := db.New(ctx, r.Config.DB, r.Logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	r.DB = dbClient
	r.OnClose("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, r.Config, r.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	if !opts.Redis {
		return nil
	}
	redisClient, err := redis.New(ctx, r.Config.Redis, r.Logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	r.Redis = redisClient
	r.OnClose("redis", redisClient.Close)
	return nil
}

// OnClose registers fn to run during Close.
func (r *Runtime) OnClose(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, close: fn})
}

// Close releases resources newest first. It is safe to call twice.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			r.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	r.closers = nil
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the fields every
// log line of the process should have.
func (r *Runtime) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return r.Logger.WithFields(ctx, map[string]any{
		"env":         r.Config.App.Env,
		"serviceKind": r.Config.Service.Kind,
		"instance":    instance.GetID(),
	}), stop
}

// MetricsServer returns the metrics endpoint loop, or nil when disabled.
func (r *Runtime) MetricsServer() func(ctx context.Context) error {
	if !r.Config.Metrics.Enabled {
		return nil
	}
	return func(ctx context.Context) error {
		return metrics.Serve(ctx, r.Config.Metrics.Addr, prometheus.DefaultGatherer, r.Logger)
	}
}

// ServeMetrics starts the metrics endpoint in the background when enabled.
func (r *Runtime) ServeMetrics(ctx context.Context) {
	serve := r.MetricsServer()
	if serve == nil {
		return
	}
	go func() {
		if err := serve(ctx); err != nil {
			r.Logger.Error(ctx, "metrics endpoint stopped", err)
		}
	}()
}

// Fatal logs err, releases resources and exits non-zero.
func (r *Runtime) Fatal(ctx context.Context, msg string, err error) {
	r.Logger.Error(ctx, msg, err)
	r.Close()
	os.Exit(1)
}
