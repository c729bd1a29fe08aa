package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"room-webhooks/internal/domain"
)

// AuditRepository 是 repository.AuditRepository 的 Mock 实现。
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Save(ctx context.Context, rec *domain.AuditRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
