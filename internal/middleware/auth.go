package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/creditgate/creditgate/internal/auth"
	"github.com/creditgate/creditgate/internal/model"
)

// UserLookup resolves a bearer token to a user snapshot.
type UserLookup interface {
	GetByToken(ctx context.Context, token string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Users  UserLookup
}

// Auth returns a middleware that authenticates requests by bearer token.
// The header must look like "<scheme> <token>"; the scheme is not checked.
// On success the user is attached to the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ParseAuthorization(r.Header.Get("Authorization"))
			if err != nil {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w)
				return
			}

			user, err := cfg.Users.GetByToken(r.Context(), token)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "unknown_token")
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", user.ID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("client_ip", ClientIP(r)),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes the 401 used for every auth failure.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or missing token")
}
