package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/utils"
)

type Store interface {
	CreateArea(ctx context.Context, a *domain.Area) error
	CreatePosition(ctx context.Context, p *domain.Position) error
	CreateEmployee(ctx context.Context, e *domain.Employee) error
	GetEmployeeByPhone(ctx context.Context, phone string) (*domain.Employee, error)
	CreateShift(ctx context.Context, shift *domain.Shift) error
}

var (
	DefaultAreas     = []string{"北区", "南区", "东区"}
	DefaultPositions = []string{"收银", "厨师", "理货"}
)

type Summary struct {
	Areas     int
	Positions int
	Employees int
	Shifts    int
}

// SeedRandom 插入默认的区域和岗位，以及 n 个随机员工和 2n 个随机班次
func SeedRandom(ctx context.Context, store Store, n int, loc *time.Location) (*Summary, error) {
	if n <= 0 {
		return nil, errors.New("请输入合法的员工数量")
	}
	summary := &Summary{}

	areaIDs := make([]int64, 0, len(DefaultAreas))
	for _, name := range DefaultAreas {
		a := &domain.Area{Name: name}
		if err := store.CreateArea(ctx, a); err != nil {
			return nil, fmt.Errorf("插入区域失败: %w", err)
		}
		areaIDs = append(areaIDs, a.ID)
		summary.Areas++
	}

	positionIDs := make([]int64, 0, len(DefaultPositions))
	for _, name := range DefaultPositions {
		p := &domain.Position{Name: name}
		if err := store.CreatePosition(ctx, p); err != nil {
			return nil, fmt.Errorf("插入岗位失败: %w", err)
		}
		positionIDs = append(positionIDs, p.ID)
		summary.Positions++
	}

	for i := 0; i < n; i++ {
		e := utils.GenerateRandomEmployee(positionIDs, areaIDs)
		if err := store.CreateEmployee(ctx, e); err != nil {
			slog.Error("无法插入员工", slog.String("error", err.Error()))
			continue
		}
		summary.Employees++
	}

	for i := 0; i < 2*n; i++ {
		s := utils.GenerateRandomShift(positionIDs, areaIDs, loc)
		if err := store.CreateShift(ctx, s); err != nil {
			// 短信代码冲突时换一个代码再试一次
			if errors.Is(err, domain.ErrDuplicateSMSCode) {
				s.SMSCode = utils.GenerateSMSCode()
				err = store.CreateShift(ctx, s)
			}
			if err != nil {
				slog.Error("无法插入班次", slog.String("error", err.Error()))
				continue
			}
		}
		summary.Shifts++
	}

	return summary, nil
}

var requiredHeaders = []string{"姓名", "手机号", "岗位", "区域"}

// SeedEmployeesCSV 从 CSV 导入员工，表头需要包含 姓名、手机号、岗位、区域。
// 多个区域用 "、" 分隔；岗位和区域按名称在本次导入中自动创建；手机号已存在的员工会被跳过。
func SeedEmployeesCSV(ctx context.Context, store Store, r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}
	for _, key := range requiredHeaders {
		if !slices.Contains(headers, key) {
			return nil, fmt.Errorf("没有找到 %s 列", key)
		}
	}

	summary := &Summary{}
	areas := make(map[string]int64)
	positions := make(map[string]int64)

	lookup := func(cache map[string]int64, name string, create func(string) (int64, error)) (int64, error) {
		if id, ok := cache[name]; ok {
			return id, nil
		}
		id, err := create(name)
		if err != nil {
			return 0, err
		}
		cache[name] = id
		return id, nil
	}
	createArea := func(name string) (int64, error) {
		a := &domain.Area{Name: name}
		if err := store.CreateArea(ctx, a); err != nil {
			return 0, err
		}
		summary.Areas++
		return a.ID, nil
	}
	createPosition := func(name string) (int64, error) {
		p := &domain.Position{Name: name}
		if err := store.CreatePosition(ctx, p); err != nil {
			return 0, err
		}
		summary.Positions++
		return p.ID, nil
	}

	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return summary, fmt.Errorf("读取文件失败: %w", err)
		}

		record := make(map[string]string)
		for i, value := range row {
			if i < len(headers) {
				record[headers[i]] = strings.TrimSpace(value)
			}
		}

		phone, err := utils.NormalizePhone(record["手机号"])
		if err != nil {
			slog.Error("手机号不合法，已跳过", "record", record, "error", err)
			continue
		}
		if _, err := store.GetEmployeeByPhone(ctx, phone); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return summary, err
		}

		positionID, err := lookup(positions, record["岗位"], createPosition)
		if err != nil {
			return summary, fmt.Errorf("插入岗位失败: %w", err)
		}

		e := &domain.Employee{
			Name:       record["姓名"],
			Phone:      phone,
			PositionID: positionID,
			Status:     domain.EmployeeStatusActive,
			SMSOptIn:   true,
		}
		for _, name := range strings.Split(record["区域"], "、") {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			areaID, err := lookup(areas, name, createArea)
			if err != nil {
				return summary, fmt.Errorf("插入区域失败: %w", err)
			}
			e.AreaIDs = append(e.AreaIDs, areaID)
		}

		if err := store.CreateEmployee(ctx, e); err != nil {
			slog.Error("插入员工失败", "error", err)
			continue
		}
		summary.Employees++
	}

	return summary, nil
}
