package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"room-webhooks/internal/repository"
	"room-webhooks/internal/tasks"
)

// defaultRetentionDays payload 未指定时的审计记录保留天数。
const defaultRetentionDays = 30

// AuditCleanupHandler 处理周期性的审计记录清理任务。
type AuditCleanupHandler struct {
	audit repository.AuditRepository
}

// NewAuditCleanupHandler 创建 Handler 实例。
func NewAuditCleanupHandler(audit repository.AuditRepository) *AuditCleanupHandler {
	if audit == nil {
		panic("AuditRepository cannot be nil for AuditCleanupHandler")
	}
	return &AuditCleanupHandler{audit: audit}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *AuditCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Warn("Audit cleanup: unparseable payload, using defaults")
	}
	retention := payload.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -retention)
	deleted, err := h.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Audit cleanup: delete failed")
		return err
	}
	logCtx.Infof("Audit cleanup completed, %d records deleted", deleted)
	return nil
}
