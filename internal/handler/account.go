package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/creditgate/creditgate/internal/auth"
	"github.com/creditgate/creditgate/internal/handler/dto"
	"github.com/creditgate/creditgate/internal/middleware"
	"github.com/creditgate/creditgate/internal/service"
)

// AccountHandler handles registration and recharge endpoints.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// Register issues a token to the calling IP.
// POST /register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)

	user, err := h.accounts.Register(r.Context(), ip)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyRegistered) {
			h.logger.Info("registration refused",
				slog.String("client_ip", ip),
				slog.String("request_id", middleware.GetRequestID(r.Context())),
			)
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{
				Error:   "Already registered",
				Code:    CodeAlreadyRegistered,
				Message: "You cannot register again while you have remaining requests.",
			})
			return
		}
		h.internalError(w, r, "failed to register", err)
		return
	}

	h.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("client_ip", ip),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	writeJSON(w, http.StatusCreated, dto.RegisterResponse{
		Token:          user.Token,
		RequestsNumber: user.RequestsNumber,
		Message:        fmt.Sprintf("Registration successful. You have %d requests.", user.RequestsNumber),
	})
}

// Recharge adds credits to the authenticated user.
// POST /recharge
func (h *AccountHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or missing token")
		return
	}

	var req dto.RechargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeResult(w, decodeError(err))
		return
	}

	result, err := h.accounts.Recharge(r.Context(), user.Token, service.ParseRechargeAmount(req.Amount))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or missing token")
			return
		}
		h.internalError(w, r, "failed to recharge", err)
		return
	}

	h.logger.Info("user recharged",
		slog.String("user_id", user.ID),
		slog.Int("amount", result.Amount),
		slog.Int("balance", result.NewBalance),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	writeJSON(w, http.StatusOK, dto.RechargeResponse{
		Message:           fmt.Sprintf("Recharged with %d requests.", result.Amount),
		NewRequestsNumber: result.NewBalance,
	})
}

func (h *AccountHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}
