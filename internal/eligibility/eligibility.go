package eligibility

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

type Store interface {
	GetEmployees(ctx context.Context, filter domain.EmployeeFilter) ([]*domain.Employee, error)
	GetAreaEmployees(ctx context.Context, areaID int64) ([]*domain.Employee, error)
}

type Request struct {
	Shift *domain.Shift
	// NotifyAllAreas 是调用方的意图，实际是否生效还取决于 Permissions
	NotifyAllAreas bool
	Permissions    domain.Permissions
	// MatchPosition 用于重新发布和快速通知，只通知岗位匹配的员工
	MatchPosition bool
}

type Result struct {
	Employees      []*domain.Employee
	NotifyAllAreas bool
	Downgraded     bool
}

type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve 计算应当收到通知的员工，结果按员工 id 排序
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	res := &Result{NotifyAllAreas: req.NotifyAllAreas}

	// 客户端的勾选不可信，这里必须重新检查权限
	if req.NotifyAllAreas && !req.Permissions.Has(domain.PermissionShiftsAllAreas) {
		r.logger.Warn("没有跨区域通知权限，已降级为本区域通知", "shiftID", req.Shift.ID, "areaID", req.Shift.AreaID)
		res.NotifyAllAreas = false
		res.Downgraded = true
	}

	var pool []*domain.Employee
	var err error
	if res.NotifyAllAreas {
		active := domain.EmployeeStatusActive
		pool, err = r.store.GetEmployees(ctx, domain.EmployeeFilter{Status: &active})
	} else {
		pool, err = r.store.GetAreaEmployees(ctx, req.Shift.AreaID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询候选员工失败: %w", err)
	}

	res.Employees = make([]*domain.Employee, 0, len(pool))
	for _, e := range pool {
		if !e.Notifiable() {
			continue
		}
		if !res.NotifyAllAreas && !e.InArea(req.Shift.AreaID) {
			continue
		}
		if req.MatchPosition && e.PositionID != req.Shift.PositionID {
			continue
		}
		res.Employees = append(res.Employees, e)
	}

	slices.SortFunc(res.Employees, func(a, b *domain.Employee) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return res, nil
}
