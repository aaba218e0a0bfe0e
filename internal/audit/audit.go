package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

type Store interface {
	CreateAuditEvent(ctx context.Context, e *domain.AuditEvent) error
}

// Recorder 异步写入审计日志，写入失败只记录日志
type Recorder struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

func (r *Recorder) LogEvent(action, actor, targetType string, targetID int64, details map[string]any) {
	e := &domain.AuditEvent{
		Action:     action,
		Actor:      actor,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.store.CreateAuditEvent(ctx, e); err != nil {
			r.logger.Error("写入审计日志失败", "action", action, "targetType", targetType, "targetID", targetID, "error", err)
		}
	}()
}

// Wait 等待所有已提交的审计日志写入完成
func (r *Recorder) Wait() {
	r.wg.Wait()
}
