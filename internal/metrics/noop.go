package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration(outcome string) {}

// ObserveRecharge is a no-op.
func (n *NoopRecorder) ObserveRecharge(amount int) {}

// IncQuotaDecision is a no-op.
func (n *NoopRecorder) IncQuotaDecision(outcome string) {}

// IncCreditSpent is a no-op.
func (n *NoopRecorder) IncCreditSpent() {}

// IncThrottleDecision is a no-op.
func (n *NoopRecorder) IncThrottleDecision(outcome string) {}

// IncItemCreated is a no-op.
func (n *NoopRecorder) IncItemCreated() {}

// IncItemUpdated is a no-op.
func (n *NoopRecorder) IncItemUpdated() {}

// IncItemDeleted is a no-op.
func (n *NoopRecorder) IncItemDeleted() {}
