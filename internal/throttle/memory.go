package throttle

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Memory is a per-key fixed window counter kept in process memory.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window

	limit  int
	period time.Duration

	now func() time.Time
}

// NewMemory returns a limiter allowing limit attempts per key every period.
func NewMemory(limit int, period time.Duration) *Memory {
	if limit < 0 {
		limit = 0
	}
	return &Memory{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(ctx context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.period)}
		m.windows[key] = w
	}

	if w.count >= m.limit {
		return &Result{
			Allowed:    false,
			Limit:      m.limit,
			Remaining:  0,
			ResetAt:    w.resetAt,
			RetryAfter: w.resetAt.Sub(now),
		}, nil
	}

	w.count++

	return &Result{
		Allowed:   true,
		Limit:     m.limit,
		Remaining: m.limit - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

// Prune drops windows that have already ended.
func (m *Memory) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// RunJanitor prunes ended windows every interval until ctx is done.
func (m *Memory) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}
