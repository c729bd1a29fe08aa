package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
)

// GormAuditRepository 是 AuditRepository 接口的 GORM 实现。
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository 创建 GormAuditRepository 实例。
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAuditRepository")
	}
	return &GormAuditRepository{db: db}
}

// Save 持久化一条审计记录（只写一次，RecordKey 唯一）。
func (r *GormAuditRepository) Save(ctx context.Context, rec *domain.AuditRecord) error {
	result := r.db.WithContext(ctx).Create(rec)
	if err := result.Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			// RecordKey 带随机后缀，撞键说明重复投递了同一条失败记录
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("gorm: save audit record (key: %s): %w", rec.RecordKey, err)
	}
	return nil
}

// DeleteOlderThan 删除早于 cutoff 的审计记录，返回删除数量。
func (r *GormAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.AuditRecord{})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("gorm: delete audit records older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return result.RowsAffected, nil
}
