package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessageSent("shift_reminder", "sent")
	m.MessageSent("shift_reminder", "sent")
	m.MessageSent("shift_reminder", "failed")
	m.ReminderEvaluated("sweep", "sent")
	m.InboundCommand("YES")
	m.ObserveSweep(time.Now())

	assert.Equal(t, 2.0, counterValue(t, m.Messages.WithLabelValues("shift_reminder", "sent")))
	assert.Equal(t, 1.0, counterValue(t, m.Messages.WithLabelValues("shift_reminder", "failed")))
	assert.Equal(t, 1.0, counterValue(t, m.Reminders.WithLabelValues("sweep", "sent")))
	assert.Equal(t, 1.0, counterValue(t, m.InboundCommands.WithLabelValues("YES")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.MessageSent("bulk", "sent")
		m.ReminderEvaluated("timer", "skipped")
		m.ObserveSweep(time.Now())
		m.InboundCommand("HELP")
	})
}
