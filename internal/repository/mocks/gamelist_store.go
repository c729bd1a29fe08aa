package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"room-webhooks/internal/domain"
)

// GameListStore 是 repository.GameListStore 的 Mock 实现。
type GameListStore struct {
	mock.Mock
}

func (m *GameListStore) Upsert(ctx context.Context, appID, userID, gameID string, entry domain.GameListEntry) error {
	args := m.Called(ctx, appID, userID, gameID, entry)
	return args.Error(0)
}

func (m *GameListStore) Remove(ctx context.Context, appID, userID, gameID string) error {
	args := m.Called(ctx, appID, userID, gameID)
	return args.Error(0)
}

func (m *GameListStore) GetEntry(ctx context.Context, appID, userID, gameID string) (*domain.GameListEntry, error) {
	args := m.Called(ctx, appID, userID, gameID)
	var entry *domain.GameListEntry
	if args.Get(0) != nil {
		entry = args.Get(0).(*domain.GameListEntry)
	}
	return entry, args.Error(1)
}

func (m *GameListStore) ListForPlayer(ctx context.Context, appID, userID string) (map[string]domain.GameListEntry, error) {
	args := m.Called(ctx, appID, userID)
	var entries map[string]domain.GameListEntry
	if args.Get(0) != nil {
		entries = args.Get(0).(map[string]domain.GameListEntry)
	}
	return entries, args.Error(1)
}

func (m *GameListStore) BatchGet(ctx context.Context, appID, userID string, gameIDs []string) (map[string]domain.GameListEntry, error) {
	args := m.Called(ctx, appID, userID, gameIDs)
	var entries map[string]domain.GameListEntry
	if args.Get(0) != nil {
		entries = args.Get(0).(map[string]domain.GameListEntry)
	}
	return entries, args.Error(1)
}
