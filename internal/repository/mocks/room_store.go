package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"room-webhooks/internal/domain"
)

// RoomStore 是 repository.RoomStore 的 Mock 实现，供 Service 层单元测试使用。
type RoomStore struct {
	mock.Mock
}

func (m *RoomStore) Create(ctx context.Context, rec *domain.RoomRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RoomStore) Get(ctx context.Context, appID, gameID string) (*domain.RoomRecord, error) {
	args := m.Called(ctx, appID, gameID)
	var rec *domain.RoomRecord
	if args.Get(0) != nil {
		rec = args.Get(0).(*domain.RoomRecord)
	}
	return rec, args.Error(1)
}

func (m *RoomStore) Update(ctx context.Context, rec *domain.RoomRecord, expectedVersion int64) error {
	args := m.Called(ctx, rec, expectedVersion)
	return args.Error(0)
}

func (m *RoomStore) Delete(ctx context.Context, appID, gameID string) error {
	args := m.Called(ctx, appID, gameID)
	return args.Error(0)
}
