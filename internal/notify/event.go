package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/utils"
)

type EventType string

const (
	EventNewShift     EventType = "new_shift"
	EventRepost       EventType = "repost"
	EventQuickNotify  EventType = "quick_notify"
	EventAssignment   EventType = "assignment"
	EventUnassignment EventType = "unassignment"
	EventFilled       EventType = "filled"
	EventCancelled    EventType = "cancelled"
	EventReminder     EventType = "reminder"
	EventBroadcast    EventType = "broadcast"
	EventReply        EventType = "reply"
)

func (e EventType) MessageType() domain.MessageType {
	switch e {
	case EventNewShift, EventRepost, EventQuickNotify, EventFilled, EventCancelled:
		return domain.MessageTypeShiftNotification
	case EventAssignment, EventUnassignment:
		return domain.MessageTypeShiftConfirmation
	case EventReminder:
		return domain.MessageTypeShiftReminder
	case EventBroadcast:
		return domain.MessageTypeBulk
	default:
		return domain.MessageTypeGeneral
	}
}

// 短信正文统一使用英文，避免 UCS-2 编码导致单条短信长度减半
var defaultTemplates = map[EventType]string{
	EventNewShift:     `New shift {{.Date}} {{.Start}}-{{.End}} at {{.Location}}{{if .Bonus}}, bonus {{.Bonus}}{{end}}. Reply YES {{.Code}} to request it.`,
	EventRepost:       `Still open: shift {{.Date}} {{.Start}}-{{.End}} at {{.Location}}{{if .Bonus}}, bonus {{.Bonus}}{{end}}. Reply YES {{.Code}} to request it.`,
	EventQuickNotify:  `Urgent: shift {{.Date}} {{.Start}}-{{.End}} at {{.Location}} needs cover{{if .Bonus}}, bonus {{.Bonus}}{{end}}. Reply YES {{.Code}}.`,
	EventAssignment:   `Hi {{.Name}}, you are assigned to the shift {{.Date}} {{.Start}}-{{.End}} at {{.Location}}. Reply CONFIRM {{.Code}} to acknowledge.`,
	EventUnassignment: `Hi {{.Name}}, you are no longer assigned to the shift {{.Date}} {{.Start}}-{{.End}} at {{.Location}}.`,
	EventFilled:       `The shift {{.Date}} {{.Start}} at {{.Location}} ({{.Code}}) has been filled. Thanks for your interest.`,
	EventCancelled:    `The shift {{.Date}} {{.Start}} at {{.Location}} ({{.Code}}) has been cancelled.`,
	EventReminder:     `Reminder: {{.Name}}, your shift starts {{.Date}} {{.Start}} at {{.Location}}.{{if .Requirements}} {{.Requirements}}{{end}}`,
	EventBroadcast:    `{{.Text}}`,
	EventReply:        `{{.Text}}`,
}

// TemplateData 模板中可以使用的变量
type TemplateData struct {
	Name         string
	Date         string
	Start        string
	End          string
	Location     string
	Requirements string
	Bonus        string
	Code         string
	Text         string
}

func newTemplateData(shift *domain.Shift, employee *domain.Employee, text string, romanize bool) TemplateData {
	data := TemplateData{Text: text}

	if employee != nil {
		data.Name = employee.Name
		if romanize {
			data.Name = utils.RomanizeName(employee.Name)
		}
	}

	if shift != nil {
		data.Date = shift.Date
		if d, err := time.Parse(domain.ShiftDateLayout, shift.Date); err == nil {
			data.Date = d.Format("Mon Jan 2")
		}
		data.Start = shortTime(shift.StartTime)
		data.End = shortTime(shift.EndTime)
		data.Location = shift.Location
		data.Requirements = shift.Requirements
		data.Code = shift.SMSCode
		if shift.Bonus.Valid {
			data.Bonus = shift.Bonus.Decimal.StringFixed(2)
		}
	}

	return data
}

// shortTime 把 15:04:05 截断为 15:04
func shortTime(s string) string {
	if t, err := time.Parse(domain.ShiftTimeLayout, s); err == nil {
		return t.Format("15:04")
	}
	return s
}

func parseTemplate(event EventType, text string) (*template.Template, error) {
	return template.New(string(event)).Option("missingkey=error").Parse(text)
}

func render(tmpl *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染模板 %s 失败: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
