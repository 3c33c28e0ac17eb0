package repository

import (
	"context"
	"math"
	"time"
)

// Balance returns the current credit balance of token's user.
func (r *UserRepository) Balance(ctx context.Context, token string) (int, error) {
	rec, ok := r.record(token)
	if !ok {
		return 0, ErrUserNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user.RequestsNumber, nil
}

// Spend runs fn while holding the user's ledger lock and debits one credit
// if fn reports success. It fails with ErrQuotaExhausted without calling fn
// when the balance is not positive. The returned balance is the one left
// after the call, debited or not.
//
// Holding the lock across fn serializes quota-gated requests of one user, so
// the last credit can only ever be spent once.
func (r *UserRepository) Spend(ctx context.Context, token string, fn func() bool) (int, error) {
	rec, ok := r.record(token)
	if !ok {
		return 0, ErrUserNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.user.RequestsNumber <= 0 {
		return 0, ErrQuotaExhausted
	}

	if fn() {
		rec.user.RequestsNumber--
	}

	return rec.user.RequestsNumber, nil
}

// Credit adds amount credits to token's user and stamps the recharge time.
// The balance saturates at math.MaxInt instead of overflowing.
func (r *UserRepository) Credit(ctx context.Context, token string, amount int, at time.Time) (int, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}

	rec, ok := r.record(token)
	if !ok {
		return 0, ErrUserNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if amount > math.MaxInt-rec.user.RequestsNumber {
		rec.user.RequestsNumber = math.MaxInt
	} else {
		rec.user.RequestsNumber += amount
	}
	rec.user.LastRecharge = at

	return rec.user.RequestsNumber, nil
}
