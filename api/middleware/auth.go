package middleware

import (
	"net/http"
	"strings"

	"github.com/void1100/Bank-management-system/api/responses"
	"github.com/void1100/Bank-management-system/pkg/auth"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

const bearerScheme = "bearer"

// TokenVerifier resolves a raw bearer token into the calling principal.
type TokenVerifier interface {
	Verify(raw string) (auth.Principal, error)
}

// Auth rejects requests without a valid bearer token and records the caller's
// user id in the request context.
func Auth(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			principal, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := principal.UserID.String()
			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
