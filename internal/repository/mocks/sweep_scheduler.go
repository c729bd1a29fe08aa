package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"room-webhooks/internal/repository"
)

// SweepScheduler 是 repository.SweepScheduler 的 Mock 实现。
type SweepScheduler struct {
	mock.Mock
}

func (m *SweepScheduler) ScheduleSweep(ctx context.Context, entry repository.SweepEntry, due time.Time) error {
	args := m.Called(ctx, entry, due)
	return args.Error(0)
}

func (m *SweepScheduler) DueSweeps(ctx context.Context, now time.Time, limit int64) ([]repository.SweepEntry, error) {
	args := m.Called(ctx, now, limit)
	var entries []repository.SweepEntry
	if args.Get(0) != nil {
		entries = args.Get(0).([]repository.SweepEntry)
	}
	return entries, args.Error(1)
}

func (m *SweepScheduler) ClearSweep(ctx context.Context, entry repository.SweepEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
