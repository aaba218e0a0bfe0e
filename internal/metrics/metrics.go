package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 为 nil 时所有方法都是空操作，方便在测试中省略
type Metrics struct {
	Messages        *prometheus.CounterVec
	Reminders       *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
	InboundCommands *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftnotify",
				Name:      "messages_total",
				Help:      "Total number of outbound SMS attempts",
			},
			[]string{"type", "status"},
		),
		Reminders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftnotify",
				Name:      "reminders_total",
				Help:      "Reminder evaluations by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "shiftnotify",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of reminder reconciliation sweeps",
				Buckets:   prometheus.DefBuckets,
			},
		),
		InboundCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftnotify",
				Name:      "inbound_commands_total",
				Help:      "Inbound SMS commands by kind",
			},
			[]string{"command"},
		),
	}
}

func (m *Metrics) MessageSent(messageType, status string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(messageType, status).Inc()
}

func (m *Metrics) ReminderEvaluated(trigger, outcome string) {
	if m == nil {
		return
	}
	m.Reminders.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) ObserveSweep(start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) InboundCommand(command string) {
	if m == nil {
		return
	}
	m.InboundCommands.WithLabelValues(command).Inc()
}
