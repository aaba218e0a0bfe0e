package domain

import "time"

type MessageDirection string

const (
	MessageDirectionOutbound MessageDirection = "outbound"
	MessageDirectionInbound  MessageDirection = "inbound"
)

type MessageType string

const (
	MessageTypeGeneral           MessageType = "general"
	MessageTypeShiftNotification MessageType = "shift_notification"
	MessageTypeShiftConfirmation MessageType = "shift_confirmation"
	MessageTypeShiftReminder     MessageType = "shift_reminder"
	MessageTypeBulk              MessageType = "bulk"
)

type DeliveryStatus string

const (
	DeliveryStatusSent     DeliveryStatus = "sent"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusReceived DeliveryStatus = "received"
)

type Message struct {
	ID                int64            `json:"id"`
	Direction         MessageDirection `json:"direction"`
	EmployeeID        *int64           `json:"employeeID"`
	Phone             string           `json:"phone"`
	Content           string           `json:"content"`
	Status            DeliveryStatus   `json:"status"`
	ProviderMessageID string           `json:"providerMessageID"`
	MessageType       MessageType      `json:"messageType"`
	RelatedShiftID    *int64           `json:"relatedShiftID"`
	ThreadID          string           `json:"threadID"`
	ErrorCode         string           `json:"errorCode"`
	ErrorMessage      string           `json:"errorMessage"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// MessageFilter 中为 nil / 空值的字段表示不过滤
type MessageFilter struct {
	Direction         MessageDirection
	MessageType       MessageType
	RelatedShiftID    *int64
	EmployeeID        *int64
	ProviderMessageID string
}
