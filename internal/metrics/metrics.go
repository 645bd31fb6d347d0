// Package metrics holds the Prometheus collectors for the lifecycle engine
// and the chat gate. Each Metrics owns its own registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	transitions       *prometheus.CounterVec
	rewardRecipients  prometheus.Counter
	accessChecks      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earlyadopters_operations_total",
				Help: "Engine operations by outcome; result is ok or the error kind",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "earlyadopters_operation_duration_seconds",
				Help:    "Duration of engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earlyadopters_verification_transitions_total",
				Help: "Committed verification state transitions",
			},
			[]string{"activity_type", "to_state"},
		),
		rewardRecipients: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "earlyadopters_reward_recipients_total",
				Help: "Recipients paid by reward distributions",
			},
		),
		accessChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earlyadopters_chat_access_checks_total",
				Help: "Chat access checks by result and answer source",
			},
			[]string{"result", "source"},
		),
	}
	m.Registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.transitions,
		m.rewardRecipients,
		m.accessChecks,
		prometheus.NewGoCollector(),
	)
	return m
}

// kinder is implemented by typed engine errors.
type kinder interface {
	ErrorKind() string
}

// Observe records one operation. A nil Metrics is a no-op.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		var k kinder
		if errors.As(err, &k) {
			result = k.ErrorKind()
		}
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) VerificationTransition(activityType, toState string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(activityType, toState).Inc()
}

func (m *Metrics) RewardDistributed(recipients int) {
	if m == nil {
		return
	}
	m.rewardRecipients.Add(float64(recipients))
}

func (m *Metrics) AccessCheck(allowed bool, source string) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.accessChecks.WithLabelValues(result, source).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
