package eligibility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/memstore"
)

type fixture struct {
	store *memstore.Store
	shift *domain.Shift
	ids   map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	north := &domain.Area{Name: "北区"}
	south := &domain.Area{Name: "南区"}
	require.NoError(t, store.CreateArea(ctx, north))
	require.NoError(t, store.CreateArea(ctx, south))

	cashier := &domain.Position{Name: "收银"}
	cook := &domain.Position{Name: "厨师"}
	require.NoError(t, store.CreatePosition(ctx, cashier))
	require.NoError(t, store.CreatePosition(ctx, cook))

	f := &fixture{store: store, ids: map[string]int64{}}
	add := func(name string, position int64, areas []int64, status domain.EmployeeStatus, optIn bool) {
		e := &domain.Employee{
			Name:       name,
			Phone:      "+86138001380" + string(rune('0'+len(f.ids))) + "0",
			PositionID: position,
			AreaIDs:    areas,
			Status:     status,
			SMSOptIn:   optIn,
		}
		require.NoError(t, store.CreateEmployee(ctx, e))
		f.ids[name] = e.ID
	}

	add("north-cashier", cashier.ID, []int64{north.ID}, domain.EmployeeStatusActive, true)
	add("north-cook", cook.ID, []int64{north.ID}, domain.EmployeeStatusActive, true)
	add("north-optout", cashier.ID, []int64{north.ID}, domain.EmployeeStatusActive, false)
	add("north-inactive", cashier.ID, []int64{north.ID}, domain.EmployeeStatusInactive, true)
	add("south-cashier", cashier.ID, []int64{south.ID}, domain.EmployeeStatusActive, true)
	add("both-cashier", cashier.ID, []int64{south.ID, north.ID}, domain.EmployeeStatusActive, true)

	f.shift = &domain.Shift{ID: 1, AreaID: north.ID, PositionID: cashier.ID}
	return f
}

func (f *fixture) idsOf(res *Result) []int64 {
	ids := make([]int64, 0, len(res.Employees))
	for _, e := range res.Employees {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestResolve_AreaScoped(t *testing.T) {
	f := newFixture(t)
	resolver := NewResolver(f.store, nil)

	res, err := resolver.Resolve(context.Background(), Request{Shift: f.shift})
	require.NoError(t, err)

	assert.Equal(t, []int64{f.ids["north-cashier"], f.ids["north-cook"], f.ids["both-cashier"]}, f.idsOf(res))
	assert.False(t, res.Downgraded)
}

func TestResolve_AllAreasWithPermission(t *testing.T) {
	f := newFixture(t)
	resolver := NewResolver(f.store, nil)

	res, err := resolver.Resolve(context.Background(), Request{
		Shift:          f.shift,
		NotifyAllAreas: true,
		Permissions:    domain.Permissions{domain.PermissionShiftsAllAreas},
	})
	require.NoError(t, err)

	assert.True(t, res.NotifyAllAreas)
	assert.Equal(t, []int64{
		f.ids["north-cashier"], f.ids["north-cook"], f.ids["south-cashier"], f.ids["both-cashier"],
	}, f.idsOf(res))
}

func TestResolve_AllAreasDowngradedWithoutPermission(t *testing.T) {
	f := newFixture(t)
	resolver := NewResolver(f.store, nil)

	scoped, err := resolver.Resolve(context.Background(), Request{Shift: f.shift})
	require.NoError(t, err)

	res, err := resolver.Resolve(context.Background(), Request{
		Shift:          f.shift,
		NotifyAllAreas: true,
		Permissions:    domain.Permissions{domain.PermissionShiftsWrite},
	})
	require.NoError(t, err)

	assert.True(t, res.Downgraded)
	assert.False(t, res.NotifyAllAreas)
	assert.Equal(t, f.idsOf(scoped), f.idsOf(res))
	assert.NotContains(t, f.idsOf(res), f.ids["south-cashier"])
}

func TestResolve_MatchPosition(t *testing.T) {
	f := newFixture(t)
	resolver := NewResolver(f.store, nil)

	res, err := resolver.Resolve(context.Background(), Request{Shift: f.shift, MatchPosition: true})
	require.NoError(t, err)

	assert.Equal(t, []int64{f.ids["north-cashier"], f.ids["both-cashier"]}, f.idsOf(res))
}
