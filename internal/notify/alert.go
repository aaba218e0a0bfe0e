package notify

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

var deliveryFailureTemplate = template.Must(template.New("delivery_failure").Parse(`
<p>通知事件 <b>{{.Event}}</b>{{if .ShiftID}}（班次 #{{.ShiftID}}）{{end}} 共尝试发送 {{.Attempts}} 条短信，其中 {{len .Failures}} 条失败：</p>
<table border="1" cellpadding="4" cellspacing="0">
	<tr><th>员工</th><th>号码</th><th>错误码</th><th>错误信息</th></tr>
	{{range .Failures}}
	<tr><td>{{.EmployeeID}}</td><td>{{.Phone}}</td><td>{{.ErrorCode}}</td><td>{{.ErrorMessage}}</td></tr>
	{{end}}
</table>
`))

// MailAlerter 在一批短信中出现失败时给主管发送邮件
type MailAlerter struct {
	client *mail.Client
	from   string
	to     string
}

func NewMailAlerter(cfg *config.Config) (*MailAlerter, error) {
	client, err := mail.NewClient(cfg.Alert.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Alert.SMTP.Port),
		mail.WithUsername(cfg.Alert.SMTP.Username),
		mail.WithPassword(cfg.Alert.SMTP.Password),
		mail.WithTimeout(time.Duration(cfg.Alert.SMTP.DialTimeout)*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &MailAlerter{
		client: client,
		from:   cfg.Alert.SMTP.Username,
		to:     cfg.Alert.To,
	}, nil
}

func buildAlertMessage(from, to string, data domain.DeliveryFailureMailData) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	if err := msg.SetBodyHTMLTemplate(deliveryFailureTemplate, data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	msg.Subject(fmt.Sprintf("班次通知 - %d 条短信发送失败", len(data.Failures)))
	return msg, nil
}

func (a *MailAlerter) Alert(ctx context.Context, data domain.DeliveryFailureMailData) error {
	msg, err := buildAlertMessage(a.from, a.to, data)
	if err != nil {
		return err
	}
	return a.client.DialAndSendWithContext(ctx, msg)
}
