package domain

import "time"

type AuditEvent struct {
	ID         int64          `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	TargetType string         `json:"targetType"`
	TargetID   int64          `json:"targetID"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"createdAt"`
}

const (
	AuditShiftCreated             = "shift.created"
	AuditShiftAssigned            = "shift.assigned"
	AuditShiftUnassigned          = "shift.unassigned"
	AuditShiftReposted            = "shift.reposted"
	AuditShiftNotified            = "shift.notified"
	AuditShiftCancelled           = "shift.cancelled"
	AuditShiftConfirmed           = "shift.confirmed"
	AuditInterestCreated          = "shift_interest.created"
	AuditInterestDeleted          = "shift_interest.deleted"
	AuditEmployeeOptOut           = "employee.sms_opt_out"
	AuditEmployeeOptIn            = "employee.sms_opt_in"
	AuditNotifyAllAreasDowngraded = "shift.notify_all_areas_downgraded"
	AuditBroadcastSent            = "broadcast.sent"
)

const (
	AuditTargetShift    = "shift"
	AuditTargetEmployee = "employee"
)
