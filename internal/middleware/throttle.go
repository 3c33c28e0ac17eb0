package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/creditgate/creditgate/internal/auth"
	"github.com/creditgate/creditgate/internal/handler/dto"
	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/throttle"
)

// FundedChecker reports whether a token belongs to a user with credits left.
type FundedChecker interface {
	IsFunded(ctx context.Context, token string) bool
}

// ThrottleConfig holds configuration for the registration throttle.
type ThrottleConfig struct {
	Logger   *slog.Logger
	Limiter  throttle.Limiter
	Funded   FundedChecker
	Enabled  bool
	Recorder metrics.Recorder
}

// Throttle limits attempts per client IP. A request carrying the bearer token
// of a funded user skips the limiter and is not counted. Limiter errors fail
// open.
func Throttle(cfg ThrottleConfig) func(http.Handler) http.Handler {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, err := auth.ParseAuthorization(r.Header.Get("Authorization")); err == nil {
				if cfg.Funded != nil && cfg.Funded.IsFunded(r.Context(), token) {
					recorder.IncThrottleDecision(metrics.OutcomeBypassed)
					next.ServeHTTP(w, r)
					return
				}
			}

			ip := ClientIP(r)
			result, err := cfg.Limiter.Allow(r.Context(), ip)
			if err != nil {
				recorder.IncThrottleDecision(metrics.OutcomeError)
				cfg.Logger.Error("throttle check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}

			setThrottleHeaders(w, result)

			if !result.Allowed {
				recorder.IncThrottleDecision(metrics.OutcomeDenied)
				cfg.Logger.Warn("too many attempts",
					slog.String("client_ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
					Error:   "Too many attempts",
					Code:    CodeTooManyAttempts,
					Message: "Please register again to get a new token",
				})
				return
			}

			recorder.IncThrottleDecision(metrics.OutcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func setThrottleHeaders(w http.ResponseWriter, result *throttle.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
