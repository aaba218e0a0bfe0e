package shift

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencySoon     Urgency = "soon"
	UrgencyNormal   Urgency = "normal"
)

// EffectiveStatus 过期不会写回存储，只在读取时根据开始时间计算
func EffectiveStatus(shift *domain.Shift, now time.Time, loc *time.Location) domain.ShiftStatus {
	if shift.Status != domain.ShiftStatusAvailable {
		return shift.Status
	}
	start, err := shift.StartAt(loc)
	if err != nil {
		return shift.Status
	}
	if !now.Before(start) {
		return domain.ShiftStatusExpired
	}
	return shift.Status
}

// UrgencyOf 距开始不足 24 小时为 critical，不足 72 小时为 soon
func UrgencyOf(shift *domain.Shift, now time.Time, loc *time.Location) Urgency {
	start, err := shift.StartAt(loc)
	if err != nil {
		return UrgencyNormal
	}

	switch until := start.Sub(now); {
	case until < 24*time.Hour:
		return UrgencyCritical
	case until < 72*time.Hour:
		return UrgencySoon
	default:
		return UrgencyNormal
	}
}

// View 附带了计算出来的状态，用于接口返回
type View struct {
	*domain.Shift
	EffectiveStatus domain.ShiftStatus `json:"effectiveStatus"`
	Urgency         Urgency            `json:"urgency"`
	StartsAt        time.Time          `json:"startsAt"`
}

func (s *Service) view(shift *domain.Shift) *View {
	now := s.now()
	v := &View{
		Shift:           shift,
		EffectiveStatus: EffectiveStatus(shift, now, s.loc),
		Urgency:         UrgencyOf(shift, now, s.loc),
	}
	if start, err := shift.StartAt(s.loc); err == nil {
		v.StartsAt = start
	}
	return v
}

func (s *Service) EffectiveStatus(shift *domain.Shift) domain.ShiftStatus {
	return EffectiveStatus(shift, s.now(), s.loc)
}

func (s *Service) Urgency(shift *domain.Shift) Urgency {
	return UrgencyOf(shift, s.now(), s.loc)
}
