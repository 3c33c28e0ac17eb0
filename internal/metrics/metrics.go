// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Outcome labels shared by the recorders.
const (
	OutcomeCreated           = "created"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeAdmitted          = "admitted"
	OutcomeExhausted         = "exhausted"
	OutcomeAllowed           = "allowed"
	OutcomeDenied            = "denied"
	OutcomeBypassed          = "bypassed"
	OutcomeError             = "error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Account metrics
	IncRegistration(outcome string)
	ObserveRecharge(amount int)

	// Quota gate metrics
	IncQuotaDecision(outcome string)
	IncCreditSpent()

	// Registration throttle metrics
	IncThrottleDecision(outcome string)

	// Item metrics
	IncItemCreated()
	IncItemUpdated()
	IncItemDeleted()
}
