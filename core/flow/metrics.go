package flow

import "github.com/prometheus/client_golang/prometheus"

// Stage and outcome label values for the attempts counter.
const (
	stageStatus   = "status"
	stageStart    = "start"
	stageComplete = "complete"

	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
)

// Metrics counts login attempts per provider, stage, and outcome. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics creates and registers the flow metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkit",
			Subsystem: "flow",
			Name:      "attempts_total",
			Help:      "Login flow steps by provider, stage, and outcome.",
		}, []string{"provider", "stage", "outcome"}),
	}
	reg.MustRegister(m.attempts)
	return m
}

func (m *Metrics) observe(provider, stage, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, stage, outcome).Inc()
}
