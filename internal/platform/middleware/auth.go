package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/httputil"
	"kontrakpro/pkg/requestcontext"
)

// PrincipalValidator turns a bearer token into the authenticated user.
type PrincipalValidator interface {
	ValidatePrincipal(token string) (requestcontext.AuthPrincipal, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator PrincipalValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, true)
}

// OptionalAuth attaches the principal when a bearer token is present and
// valid, rejects invalid tokens, and lets anonymous requests through.
func OptionalAuth(validator PrincipalValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, false)
}

func authenticate(validator PrincipalValidator, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing bearer token"))
				return
			}

			principal, err := validator.ValidatePrincipal(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}
