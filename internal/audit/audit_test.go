package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/memstore"
)

func TestRecorder_LogEvent(t *testing.T) {
	store := memstore.New()
	recorder := NewRecorder(store, nil)

	recorder.LogEvent(domain.AuditShiftAssigned, "admin", domain.AuditTargetShift, 3, map[string]any{"employeeID": int64(7)})
	recorder.LogEvent(domain.AuditShiftUnassigned, "admin", domain.AuditTargetShift, 3, nil)
	recorder.Wait()

	events, err := store.GetAuditEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	actions := []string{events[0].Action, events[1].Action}
	assert.ElementsMatch(t, []string{domain.AuditShiftAssigned, domain.AuditShiftUnassigned}, actions)
}
