package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/memstore"
)

func TestSeedRandom(t *testing.T) {
	store := memstore.New()

	summary, err := SeedRandom(context.Background(), store, 5, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Areas: 3, Positions: 3, Employees: 5, Shifts: 10}, summary)

	shifts, err := store.GetShifts(context.Background(), domain.ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, shifts, 10)

	_, err = SeedRandom(context.Background(), store, 0, time.UTC)
	assert.Error(t, err)
}

func TestSeedEmployeesCSV(t *testing.T) {
	store := memstore.New()
	data := "\ufeff姓名,手机号,岗位,区域\n" +
		"张伟,+86 138 0000 0001,收银,北区、南区\n" +
		"李娜,+8613800000002,厨师,北区\n" +
		"王芳,not-a-phone,收银,北区\n" +
		"张伟,+8613800000001,收银,北区\n"

	summary, err := SeedEmployeesCSV(context.Background(), store, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, &Summary{Areas: 2, Positions: 2, Employees: 2}, summary)

	e, err := store.GetEmployeeByPhone(context.Background(), "+8613800000001")
	require.NoError(t, err)
	assert.Equal(t, "张伟", e.Name)
	assert.Len(t, e.AreaIDs, 2)
	assert.True(t, e.SMSOptIn)
}

func TestSeedEmployeesCSV_MissingHeader(t *testing.T) {
	_, err := SeedEmployeesCSV(context.Background(), memstore.New(), strings.NewReader("姓名,手机号\n张伟,+8613800000001\n"))
	assert.ErrorContains(t, err, "岗位")
}
