package repository

import (
	"context"

	"room-webhooks/internal/domain"
)

// RoomStore 定义了房间记录在外部键值存储中的存取操作。
// 存储能力只有按键的 get/set/create/delete，结构化字段的编解码
// 发生在实现内部，核心层只处理 domain.RoomRecord。
type RoomStore interface {
	// Create 创建新的房间记录。
	// 同一 (appId, gameId) 已有记录时返回 repository.ErrAlreadyExists。
	Create(ctx context.Context, rec *domain.RoomRecord) error

	// Get 加载房间记录。不存在时返回 repository.ErrRoomNotFound。
	Get(ctx context.Context, appID, gameID string) (*domain.RoomRecord, error)

	// Update 写回房间记录。expectedVersion 是调用方读取时观察到的版本号；
	// 存储中的版本与之不符时返回 repository.ErrVersionConflict，
	// 成功时存储版本变为 expectedVersion+1。
	Update(ctx context.Context, rec *domain.RoomRecord, expectedVersion int64) error

	// Delete 删除房间记录。房间关闭后键可被重新用于全新的创建。
	Delete(ctx context.Context, appID, gameID string) error
}
