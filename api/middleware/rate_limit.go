package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/void1100/Bank-management-system/api/responses"
	"github.com/void1100/Bank-management-system/pkg/config"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type rateCheck struct {
	scope string
	limit int
	key   func(*http.Request) string
}

// RateLimit counts each request against a per-user and a per-IP fixed window
// for the named surface. It must run after Auth so the user id is on the
// context. A nil limiter or an empty config disables it.
func RateLimit(surface string, cfg config.RateLimitConfig, limiter windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	checks := []rateCheck{
		{scope: "user", limit: cfg.PerUser, key: func(r *http.Request) string { return UserIDFromContext(r.Context()) }},
		{scope: "ip", limit: cfg.PerIP, key: clientIP},
	}
	active := checks[:0]
	for _, c := range checks {
		if c.limit > 0 {
			active = append(active, c)
		}
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil || cfg.Window <= 0 || len(active) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			remaining := math.MaxInt
			for _, c := range active {
				id := c.key(r)
				if id == "" {
					continue
				}
				ok, count, err := limiter.FixedWindowAllow(ctx, surface+":"+c.scope+":"+id, int64(c.limit), cfg.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !ok {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"surface": surface,
							"scope":   c.scope,
							"count":   count,
							"limit":   c.limit,
						}), "rate_limit.blocked")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(cfg.Window.Seconds()))))
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(c.limit))
					w.Header().Set("X-RateLimit-Remaining", "0")
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
				remaining = min(remaining, c.limit-int(count))
			}
			if remaining != math.MaxInt {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
