package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/api/controllers"
	"github.com/void1100/Bank-management-system/api/middleware"
	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/internal/fraud"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/auth"
	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/logger"
	pkgredis "github.com/void1100/Bank-management-system/pkg/redis"
)

// RedisStore is the redis surface used by the HTTP layer.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
	Ping(ctx context.Context) error
}

// OTPGate verifies and lists OTP challenges.
type OTPGate interface {
	Verify(ctx context.Context, p otp.VerifyParams) (otp.Result, error)
	Pending(ctx context.Context, userID uuid.UUID) ([]otp.PendingChallenge, error)
}

// Deps groups everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Accounts accounts.Service
	Ledger   ledger.Service
	OTP      OTPGate
	Fraud    fraud.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{}
	if d.DB != nil {
		deps["database"] = d.DB
	}
	if d.Redis != nil {
		deps["redis"] = d.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiter          pkgredis.RateLimiter
	)
	if d.Redis != nil {
		idempotencyStore, limiter = d.Redis, d.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(auth.NewVerifier(cfg.JWT), logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", controllers.AccountOpen(d.Accounts, logg))
			r.Get("/", controllers.AccountList(d.Accounts, logg))
			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/fraud-alerts", controllers.FraudAlerts(d.Fraud, logg))
				r.Get("/transactions", controllers.TransactionHistory(d.Ledger, logg))
				r.Get("/transactions/daily", controllers.DailyChart(d.Ledger, logg))
				r.Get("/transactions/balance", controllers.BalanceTrend(d.Ledger, logg))
				r.Get("/transactions/types", controllers.TypeSplit(d.Ledger, logg))
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit("money", cfg.RateLimit, limiter, logg))
				r.Post("/deposit", controllers.Deposit(d.Ledger, logg))
				r.Post("/withdraw", controllers.Withdraw(d.Ledger, logg))
				r.Post("/transfer", controllers.Transfer(d.Ledger, logg))
			})
			r.Post("/verify-otp", controllers.VerifyOTP(d.OTP, logg))
		})

		r.Get("/otp/pending", controllers.PendingOTP(d.OTP, logg))
	})

	return r
}
