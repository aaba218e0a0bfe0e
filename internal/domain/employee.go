package domain

import (
	"slices"
	"time"
)

type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "active"
	EmployeeStatusInactive EmployeeStatus = "inactive"
)

type Employee struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Phone      string         `json:"phone"` // E.164
	PositionID int64          `json:"positionID"`
	AreaIDs    []int64        `json:"areaIDs"`
	Status     EmployeeStatus `json:"status"`
	SMSOptIn   bool           `json:"smsOptIn"`
	CreatedAt  time.Time      `json:"createdAt"`
	Version    int32          `json:"-"`
}

// Notifiable 只有在职且同意接收短信的员工才会成为通知候选
func (e *Employee) Notifiable() bool {
	return e.Status == EmployeeStatusActive && e.SMSOptIn
}

func (e *Employee) InArea(areaID int64) bool {
	return slices.Contains(e.AreaIDs, areaID)
}

func (e *Employee) Clone() *Employee {
	c := *e
	c.AreaIDs = slices.Clone(e.AreaIDs)
	return &c
}

type EmployeeFilter struct {
	Status *EmployeeStatus
}
