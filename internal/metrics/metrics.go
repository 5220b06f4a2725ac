// Package metrics exports the bot's Prometheus collectors.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the bot records to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	messages      *prometheus.CounterVec
	points        prometheus.Counter
	milestones    prometheus.Counter
	ledgerLatency *prometheus.HistogramVec
	ledgerErrors  *prometheus.CounterVec
	pushes        *prometheus.CounterVec
}

// New registers the bot's collectors with reg, or the default registerer when reg is nil.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "pointbot"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by outcome.",
		}, []string{"outcome"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points successfully recorded to the ledger.",
		}),
		milestones: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestones_total",
			Help:      "Hundred-point milestones reached.",
		}),
		ledgerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Latency of ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ledgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operation_errors_total",
			Help:      "Failed ledger operations.",
		}, []string{"operation"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Push message deliveries by result.",
		}, []string{"result"}),
	}

	var err error
	if m.messages, err = register(reg, m.messages); err != nil {
		return nil, err
	}
	if m.points, err = register(reg, m.points); err != nil {
		return nil, err
	}
	if m.milestones, err = register(reg, m.milestones); err != nil {
		return nil, err
	}
	if m.ledgerLatency, err = register(reg, m.ledgerLatency); err != nil {
		return nil, err
	}
	if m.ledgerErrors, err = register(reg, m.ledgerErrors); err != nil {
		return nil, err
	}
	if m.pushes, err = register(reg, m.pushes); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector that is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// Message counts one handled inbound message.
func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

// PointsAwarded adds recorded points.
func (m *Metrics) PointsAwarded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.points.Add(float64(n))
}

func (m *Metrics) Milestone() {
	if m == nil {
		return
	}
	m.milestones.Inc()
}

// LedgerOperation records latency and failure of a ledger call.
func (m *Metrics) LedgerOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ledgerLatency.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ledgerErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) Push(err error) {
	if m == nil {
		return
	}
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	m.pushes.WithLabelValues(result).Inc()
}
