package repository

import (
	"context"
	"sync"

	"github.com/creditgate/creditgate/internal/model"
)

// userRecord guards a single user. Its lock covers the credit balance and
// LastRecharge; the other fields never change after registration.
type userRecord struct {
	mu   sync.Mutex
	user model.User
}

func (rec *userRecord) snapshot() *model.User {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	u := rec.user
	return &u
}

func (rec *userRecord) funded() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user.IsFunded()
}

// UserRepository is the identity store: users keyed by token plus the
// client IP -> active token table used to stop re-registration abuse.
type UserRepository struct {
	mu      sync.RWMutex
	byToken map[string]*userRecord
	byIP    map[string]string
}

// NewUserRepository creates an empty identity store.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byToken: make(map[string]*userRecord),
		byIP:    make(map[string]string),
	}
}

// Register stores a new user and binds its IP to the user's token.
// It fails with ErrAlreadyRegistered when the IP already maps to a token
// that still has credits. An exhausted mapping is overwritten.
//
// The balance of the bound user is read without the table lock held, so a
// gated request in flight for that user never stalls other lookups.
func (r *UserRepository) Register(ctx context.Context, user *model.User) error {
	for {
		r.mu.RLock()
		current, bound := r.byIP[user.IP]
		rec := r.byToken[current]
		r.mu.RUnlock()

		if bound && rec != nil && rec.funded() {
			return ErrAlreadyRegistered
		}

		r.mu.Lock()
		if now, ok := r.byIP[user.IP]; ok != bound || now != current {
			// The binding moved while the balance was read; look again.
			r.mu.Unlock()
			continue
		}

		if _, exists := r.byToken[user.Token]; exists {
			r.mu.Unlock()
			return ErrTokenExists
		}

		r.byToken[user.Token] = &userRecord{user: *user}
		r.byIP[user.IP] = user.Token
		r.mu.Unlock()

		return nil
	}
}

// GetByToken returns a snapshot of the user owning the token.
func (r *UserRepository) GetByToken(ctx context.Context, token string) (*model.User, error) {
	rec, ok := r.record(token)
	if !ok {
		return nil, ErrUserNotFound
	}
	return rec.snapshot(), nil
}

// IsFunded reports whether token belongs to a user with credits left.
// Unknown tokens are never funded.
func (r *UserRepository) IsFunded(ctx context.Context, token string) bool {
	rec, ok := r.record(token)
	if !ok {
		return false
	}
	return rec.funded()
}

// TokenForIP returns the token currently bound to ip.
func (r *UserRepository) TokenForIP(ctx context.Context, ip string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.byIP[ip]
	return token, ok
}

// Count returns the number of registered users.
func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

func (r *UserRepository) record(token string) (*userRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byToken[token]
	return rec, ok
}
