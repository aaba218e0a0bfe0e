package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ShiftStatus string

const (
	ShiftStatusAvailable ShiftStatus = "available"
	ShiftStatusClaimed   ShiftStatus = "claimed"
	ShiftStatusExpired   ShiftStatus = "expired"
	ShiftStatusCancelled ShiftStatus = "cancelled"
)

const (
	ShiftDateLayout = "2006-01-02"
	ShiftTimeLayout = "15:04:05"
)

type Shift struct {
	ID                 int64               `json:"id"`
	PositionID         int64               `json:"positionID"`
	AreaID             int64               `json:"areaID"`
	Location           string              `json:"location"`
	Date               string              `json:"date"`
	StartTime          string              `json:"startTime"`
	EndTime            string              `json:"endTime"`
	Requirements       string              `json:"requirements"`
	Bonus              decimal.NullDecimal `json:"bonus"`
	Status             ShiftStatus         `json:"status"`
	AssignedEmployeeID *int64              `json:"assignedEmployeeID"`
	NotifyAllAreas     bool                `json:"notifyAllAreas"`
	LastNotifiedAt     *time.Time          `json:"lastNotifiedAt"`
	NotificationCount  int32               `json:"notificationCount"`
	SMSCode            string              `json:"smsCode"`
	CreatedAt          time.Time           `json:"createdAt"`
	Version            int32               `json:"-"`
}

// StartAt 将日期和开始时间解析为 loc 时区下的时间点
func (s *Shift) StartAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(ShiftDateLayout+" "+ShiftTimeLayout, s.Date+" "+s.StartTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("班次 %d 的开始时间无法解析: %w", s.ID, err)
	}
	return t, nil
}

// EndAt 结束时间早于开始时间时视为跨夜班次
func (s *Shift) EndAt(loc *time.Location) (time.Time, error) {
	start, err := s.StartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	end, err := time.ParseInLocation(ShiftDateLayout+" "+ShiftTimeLayout, s.Date+" "+s.EndTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("班次 %d 的结束时间无法解析: %w", s.ID, err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end, nil
}

func (s *Shift) IsAssignedTo(employeeID int64) bool {
	return s.AssignedEmployeeID != nil && *s.AssignedEmployeeID == employeeID
}

// Clone 返回一份深拷贝，避免调用方修改共享记录
func (s *Shift) Clone() *Shift {
	c := *s
	if s.AssignedEmployeeID != nil {
		id := *s.AssignedEmployeeID
		c.AssignedEmployeeID = &id
	}
	if s.LastNotifiedAt != nil {
		t := *s.LastNotifiedAt
		c.LastNotifiedAt = &t
	}
	return &c
}

type ShiftFilter struct {
	Statuses []ShiftStatus
	AreaIDs  []int64
	IDs      []int64
}

type ShiftInterest struct {
	ShiftID    int64     `json:"shiftID"`
	EmployeeID int64     `json:"employeeID"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ShiftInterestFilter struct {
	ShiftID    *int64
	EmployeeID *int64
}

type Area struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Position struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
