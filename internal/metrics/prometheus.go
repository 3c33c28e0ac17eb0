package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exposes the Recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	registrations     *prometheus.CounterVec
	recharges         prometheus.Counter
	creditsRecharged  prometheus.Counter
	quotaDecisions    *prometheus.CounterVec
	creditsSpent      prometheus.Counter
	throttleDecisions *prometheus.CounterVec
	itemOperations    *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_registrations_total",
			Help: "Total number of registration attempts that reached the identity store",
		}, []string{"outcome"}),
		recharges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_recharges_total",
			Help: "Total number of successful recharges",
		}),
		creditsRecharged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_credits_recharged_total",
			Help: "Total number of request credits added by recharges",
		}),
		quotaDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_quota_decisions_total",
			Help: "Quota gate decisions (admitted/exhausted)",
		}, []string{"outcome"}),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_credits_spent_total",
			Help: "Total number of request credits debited by successful responses",
		}),
		throttleDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_throttle_decisions_total",
			Help: "Registration throttle decisions (allowed/denied/bypassed/error)",
		}, []string{"outcome"}),
		itemOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_item_operations_total",
			Help: "Item mutations grouped by operation",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		p.registrations,
		p.recharges,
		p.creditsRecharged,
		p.quotaDecisions,
		p.creditsSpent,
		p.throttleDecisions,
		p.itemOperations,
	)

	return p
}

func (p *PrometheusRecorder) IncRegistration(outcome string) {
	p.registrations.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRecharge(amount int) {
	p.recharges.Inc()
	if amount > 0 {
		p.creditsRecharged.Add(float64(amount))
	}
}

func (p *PrometheusRecorder) IncQuotaDecision(outcome string) {
	p.quotaDecisions.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncCreditSpent() {
	p.creditsSpent.Inc()
}

func (p *PrometheusRecorder) IncThrottleDecision(outcome string) {
	p.throttleDecisions.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncItemCreated() {
	p.itemOperations.WithLabelValues("create").Inc()
}

func (p *PrometheusRecorder) IncItemUpdated() {
	p.itemOperations.WithLabelValues("update").Inc()
}

func (p *PrometheusRecorder) IncItemDeleted() {
	p.itemOperations.WithLabelValues("delete").Inc()
}
