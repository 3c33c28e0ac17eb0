package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/creditgate/creditgate/internal/auth"
	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/model"
	"github.com/creditgate/creditgate/internal/repository"
)

const (
	// DefaultInitialCredits is the balance of a freshly registered token.
	DefaultInitialCredits = 10
	// DefaultRechargeAmount is used when a recharge carries no usable amount.
	DefaultRechargeAmount = 10

	maxTokenRetries = 3
)

// leadingInt matches the integer prefix of a loosely formatted number.
var leadingInt = regexp.MustCompile(`^[+-]?[0-9]+`)

// AccountConfig holds the credit policy.
type AccountConfig struct {
	InitialCredits  int
	DefaultRecharge int
}

// AccountService handles registration and recharges.
type AccountService struct {
	users   *repository.UserRepository
	cfg     AccountConfig
	metrics metrics.Recorder
	now     func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(users *repository.UserRepository, cfg AccountConfig, recorder metrics.Recorder) *AccountService {
	if cfg.InitialCredits <= 0 {
		cfg.InitialCredits = DefaultInitialCredits
	}
	if cfg.DefaultRecharge <= 0 {
		cfg.DefaultRecharge = DefaultRechargeAmount
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		users:   users,
		cfg:     cfg,
		metrics: recorder,
		now:     time.Now,
	}
}

// InitialCredits returns the balance granted on registration.
func (s *AccountService) InitialCredits() int {
	return s.cfg.InitialCredits
}

// Register issues a new token for clientIP.
// Fails with ErrAlreadyRegistered while the IP's current token has credits.
func (s *AccountService) Register(ctx context.Context, clientIP string) (*model.User, error) {
	for attempt := 0; attempt < maxTokenRetries; attempt++ {
		user := &model.User{
			ID:             auth.NewUserID(),
			Token:          auth.NewToken(),
			RequestsNumber: s.cfg.InitialCredits,
			LastRecharge:   s.now().UTC(),
			IP:             clientIP,
		}

		err := s.users.Register(ctx, user)
		switch {
		case err == nil:
			s.metrics.IncRegistration(metrics.OutcomeCreated)
			return user, nil
		case errors.Is(err, repository.ErrAlreadyRegistered):
			s.metrics.IncRegistration(metrics.OutcomeAlreadyRegistered)
			return nil, ErrAlreadyRegistered
		case errors.Is(err, repository.ErrTokenExists):
			continue
		default:
			return nil, fmt.Errorf("failed to register user: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to generate unique token after %d attempts", maxTokenRetries)
}

// RechargeResult reports the outcome of a recharge.
type RechargeResult struct {
	Amount     int
	NewBalance int
}

// Recharge adds credits to token's user. A requested amount that is not
// positive is replaced by the default recharge amount.
func (s *AccountService) Recharge(ctx context.Context, token string, requested int) (*RechargeResult, error) {
	amount := requested
	if amount <= 0 {
		amount = s.cfg.DefaultRecharge
	}

	balance, err := s.users.Credit(ctx, token, amount, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to recharge: %w", err)
	}

	s.metrics.ObserveRecharge(amount)

	return &RechargeResult{Amount: amount, NewBalance: balance}, nil
}

// ParseRechargeAmount reads a JSON amount given as a number or a numeric
// string. Fractions are truncated and trailing garbage after the digits is
// ignored. Anything unusable yields 0.
func ParseRechargeAmount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}

	var text string
	switch t := v.(type) {
	case float64:
		text = strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0
	}

	n, err := strconv.Atoi(leadingInt.FindString(text))
	if err != nil {
		return 0
	}
	return n
}
