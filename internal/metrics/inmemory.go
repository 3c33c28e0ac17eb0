package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations     map[string]uint64
	Recharges         uint64
	CreditsRecharged  uint64
	QuotaDecisions    map[string]uint64
	CreditsSpent      uint64
	ThrottleDecisions map[string]uint64
	ItemsCreated      uint64
	ItemsUpdated      uint64
	ItemsDeleted      uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                sync.Mutex
	registrations     map[string]uint64
	quotaDecisions    map[string]uint64
	throttleDecisions map[string]uint64

	recharges        uint64
	creditsRecharged uint64
	creditsSpent     uint64
	itemsCreated     uint64
	itemsUpdated     uint64
	itemsDeleted     uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		registrations:     make(map[string]uint64),
		quotaDecisions:    make(map[string]uint64),
		throttleDecisions: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Registrations:     copyCounts(m.registrations),
		Recharges:         atomic.LoadUint64(&m.recharges),
		CreditsRecharged:  atomic.LoadUint64(&m.creditsRecharged),
		QuotaDecisions:    copyCounts(m.quotaDecisions),
		CreditsSpent:      atomic.LoadUint64(&m.creditsSpent),
		ThrottleDecisions: copyCounts(m.throttleDecisions),
		ItemsCreated:      atomic.LoadUint64(&m.itemsCreated),
		ItemsUpdated:      atomic.LoadUint64(&m.itemsUpdated),
		ItemsDeleted:      atomic.LoadUint64(&m.itemsDeleted),
	}
}

// IncRegistration counts a registration attempt by outcome.
func (m *InMemoryRecorder) IncRegistration(outcome string) {
	m.mu.Lock()
	m.registrations[outcome]++
	m.mu.Unlock()
}

// ObserveRecharge counts a recharge and the credits it added.
func (m *InMemoryRecorder) ObserveRecharge(amount int) {
	atomic.AddUint64(&m.recharges, 1)
	if amount > 0 {
		atomic.AddUint64(&m.creditsRecharged, uint64(amount))
	}
}

// IncQuotaDecision counts a quota gate decision by outcome.
func (m *InMemoryRecorder) IncQuotaDecision(outcome string) {
	m.mu.Lock()
	m.quotaDecisions[outcome]++
	m.mu.Unlock()
}

// IncCreditSpent counts a debited credit.
func (m *InMemoryRecorder) IncCreditSpent() {
	atomic.AddUint64(&m.creditsSpent, 1)
}

// IncThrottleDecision counts a throttle decision by outcome.
func (m *InMemoryRecorder) IncThrottleDecision(outcome string) {
	m.mu.Lock()
	m.throttleDecisions[outcome]++
	m.mu.Unlock()
}

// IncItemCreated increments item created counter.
func (m *InMemoryRecorder) IncItemCreated() {
	atomic.AddUint64(&m.itemsCreated, 1)
}

// IncItemUpdated increments item updated counter.
func (m *InMemoryRecorder) IncItemUpdated() {
	atomic.AddUint64(&m.itemsUpdated, 1)
}

// IncItemDeleted increments item deleted counter.
func (m *InMemoryRecorder) IncItemDeleted() {
	atomic.AddUint64(&m.itemsDeleted, 1)
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
