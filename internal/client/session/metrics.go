package session

import (
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks session transitions and operation failures. A nil
// *Metrics records nothing.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	SignInDuration prometheus.Histogram
}

// NewMetrics registers the session metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authsession_session_transitions_total",
			Help: "Session state transitions by target status",
		}, []string{"to"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authsession_operation_failures_total",
			Help: "Failed session operations by operation and error kind",
		}, []string{"op", "kind"}),
		SignInDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "authsession_signin_duration_seconds",
			Help:    "Duration of sign-in attempts, successful or not",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) transition(to Status) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) failure(op string, err error) {
	if m == nil || err == nil {
		return
	}
	m.Failures.WithLabelValues(op, client.Kind(err)).Inc()
}

// observeSignIn records the duration of a sign-in started at start.
func (m *Metrics) observeSignIn(start time.Time) {
	if m == nil {
		return
	}
	m.SignInDuration.Observe(time.Since(start).Seconds())
}
