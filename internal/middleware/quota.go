package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/creditgate/creditgate/internal/auth"
	"github.com/creditgate/creditgate/internal/handler/dto"
	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/repository"
)

// RequestsRemainingHeader carries the balance left after a gated request.
const RequestsRemainingHeader = "X-Requests-Remaining"

// remainingField is merged into every successful gated response body.
const remainingField = "requestsNumberRemaining"

// Ledger admits and debits quota-gated requests.
type Ledger interface {
	Spend(ctx context.Context, token string, fn func() bool) (int, error)
}

// QuotaConfig holds configuration for the quota gate.
type QuotaConfig struct {
	Logger   *slog.Logger
	Ledger   Ledger
	Recorder metrics.Recorder
}

// Quota wraps a ResultFunc so that each successful call costs the
// authenticated user one credit. Admission, the handler and the debit all run
// under the user's ledger lock. Error results pass through without a debit.
// Auth must run first.
func Quota(cfg QuotaConfig) func(dto.ResultFunc) http.Handler {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(fn dto.ResultFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromContext(r.Context())
			if user == nil {
				writeAuthError(w)
				return
			}

			var (
				result  dto.Result
				payload []byte
				encErr  error
			)
			remaining, err := cfg.Ledger.Spend(r.Context(), user.Token, func() bool {
				result = fn(r)
				payload, encErr = json.Marshal(result.Body)
				return encErr == nil && result.Succeeded()
			})

			switch {
			case errors.Is(err, repository.ErrQuotaExhausted):
				recorder.IncQuotaDecision(metrics.OutcomeExhausted)
				cfg.Logger.Warn("request quota exhausted",
					slog.String("user_id", user.ID),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeExhausted(w)
				return
			case errors.Is(err, repository.ErrUserNotFound):
				writeAuthError(w)
				return
			case err != nil:
				cfg.Logger.Error("quota check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
				return
			}

			recorder.IncQuotaDecision(metrics.OutcomeAdmitted)

			if encErr != nil {
				cfg.Logger.Error("failed to encode response",
					slog.String("error", encErr.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
				return
			}

			if !result.Succeeded() {
				writeRaw(w, result.Status, payload)
				return
			}

			recorder.IncCreditSpent()
			cfg.Logger.Debug("credit spent",
				slog.String("user_id", user.ID),
				slog.Int("remaining", remaining),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			body, err := withRemaining(payload, remaining)
			if err != nil {
				cfg.Logger.Error("failed to decorate response",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
				return
			}

			w.Header().Set(RequestsRemainingHeader, strconv.Itoa(remaining))
			writeRaw(w, result.Status, body)
		})
	}
}

// withRemaining adds the remaining balance to an encoded body. Objects get the
// field merged in; arrays are wrapped under "items"; anything else under
// "value".
func withRemaining(payload []byte, remaining int) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode object body: %w", err)
		}
		obj[remainingField] = json.RawMessage(strconv.Itoa(remaining))
		return json.Marshal(obj)
	}

	key := "value"
	if len(trimmed) > 0 && trimmed[0] == '[' {
		key = "items"
	}
	return json.Marshal(map[string]json.RawMessage{
		key:            json.RawMessage(trimmed),
		remainingField: json.RawMessage(strconv.Itoa(remaining)),
	})
}

func writeExhausted(w http.ResponseWriter) {
	zero := 0
	writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
		Error:          "Too many requests",
		Code:           CodeTooManyRequests,
		Message:        "Your request max number has been exhausted.",
		RequestsNumber: &zero,
	})
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}
