package repository

import (
	"context"

	"room-webhooks/internal/domain"
)

// GameListStore 定义了玩家游戏列表二级索引的存取操作。
// 索引按 (appId, userId) 分桶，桶内按 gameId 存放条目。
type GameListStore interface {
	// Upsert 写入或刷新一条 (玩家, 房间) 索引条目。
	Upsert(ctx context.Context, appID, userID, gameID string, entry domain.GameListEntry) error

	// Remove 删除索引条目。条目不存在不视为错误。
	Remove(ctx context.Context, appID, userID, gameID string) error

	// GetEntry 读取单条索引条目。不存在时返回 repository.ErrEntryNotFound。
	GetEntry(ctx context.Context, appID, userID, gameID string) (*domain.GameListEntry, error)

	// ListForPlayer 返回玩家的全部索引条目，键为 gameId。
	ListForPlayer(ctx context.Context, appID, userID string) (map[string]domain.GameListEntry, error)

	// BatchGet 在同一玩家的桶内批量读取多个房间的条目，一次往返。
	// 结果只包含存在的条目。
	BatchGet(ctx context.Context, appID, userID string, gameIDs []string) (map[string]domain.GameListEntry, error)
}
