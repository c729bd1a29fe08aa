package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
)

// GameListService 维护玩家游戏列表索引，并提供 GetGameList 查询。
type GameListService struct {
	store repository.GameListStore
}

// NewGameListService 创建 GameListService 实例。
func NewGameListService(store repository.GameListStore) *GameListService {
	if store == nil {
		panic("GameListStore cannot be nil for GameListService")
	}
	return &GameListService{store: store}
}

// Upsert 写入或刷新一条索引条目。
func (s *GameListService) Upsert(ctx context.Context, appID, userID, gameID string, entry domain.GameListEntry) error {
	return s.store.Upsert(ctx, appID, userID, gameID, entry)
}

// Remove 删除一条索引条目。
func (s *GameListService) Remove(ctx context.Context, appID, userID, gameID string) error {
	return s.store.Remove(ctx, appID, userID, gameID)
}

// GetEntry 读取单条索引条目。
func (s *GameListService) GetEntry(ctx context.Context, appID, userID, gameID string) (*domain.GameListEntry, error) {
	return s.store.GetEntry(ctx, appID, userID, gameID)
}

// GameListItem GetGameList 响应中的一条房间信息。
type GameListItem struct {
	ActorNr    int                    `json:"actorNr"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// GetGameList 返回玩家关联的全部房间。
// 调用方自己创建的房间直接用本地缓存的属性；他人创建的房间按创建者
// 分组，对每个创建者的索引做一次批量回查以恢复最新属性，减少往返。
func (s *GameListService) GetGameList(ctx context.Context, appID, userID string) (map[string]GameListItem, error) {
	entries, err := s.store.ListForPlayer(ctx, appID, userID)
	if err != nil {
		return nil, NewUnexpected(err)
	}

	result := make(map[string]GameListItem, len(entries))
	byCreator := map[string][]string{}
	for gameID, entry := range entries {
		if entry.CreatorID == "" || entry.CreatorID == userID {
			result[gameID] = GameListItem{ActorNr: entry.ActorNr, Properties: entry.Properties}
			continue
		}
		// 他人创建的房间：先放入本地缓存的属性，回查成功后覆盖
		result[gameID] = GameListItem{ActorNr: entry.ActorNr, Properties: entry.Properties}
		byCreator[entry.CreatorID] = append(byCreator[entry.CreatorID], gameID)
	}

	for creatorID, gameIDs := range byCreator {
		creatorEntries, err := s.store.BatchGet(ctx, appID, creatorID, gameIDs)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			logrus.WithError(err).WithFields(logrus.Fields{
				"creator_id": creatorID,
				"rooms":      len(gameIDs),
			}).Warn("GetGameList: creator index lookup failed, using cached properties")
			continue
		}
		for gameID, creatorEntry := range creatorEntries {
			item := result[gameID]
			item.Properties = creatorEntry.Properties
			result[gameID] = item
		}
	}

	return result, nil
}
