package repository

import (
	"context"
	"time"

	"room-webhooks/internal/domain"
)

// AuditRepository 定义了校验失败审计记录的持久化操作。
type AuditRepository interface {
	// Save 持久化一条审计记录（只写一次）。
	Save(ctx context.Context, rec *domain.AuditRecord) error

	// DeleteOlderThan 删除早于 cutoff 的审计记录，返回删除数量。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
