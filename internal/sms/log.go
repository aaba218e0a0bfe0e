package sms

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogTransport 只把短信写入日志，用于开发环境
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, to, body string) Result {
	id := "log-" + uuid.NewString()
	t.logger.Info("发送短信", "to", to, "body", body, "providerMessageID", id)
	return Result{Success: true, ProviderMessageID: id}
}
