package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
)

// RedisGameListStore 是 GameListStore 接口的 Redis 实现。
// 每个 (appId, userId) 一个 hash，字段为 gameId，值为 JSON 编码的条目。
type RedisGameListStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisGameListStore 创建 RedisGameListStore 实例。
func NewRedisGameListStore(client *redis.Client, keyPrefix string) *RedisGameListStore {
	if client == nil {
		panic("redis client cannot be nil for RedisGameListStore")
	}
	if keyPrefix == "" {
		keyPrefix = "rw:"
	}
	return &RedisGameListStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisGameListStore) listKey(appID, userID string) string {
	return fmt.Sprintf("%sgamelist:%s:%s", r.keyPrefix, appID, userID)
}

// Upsert 写入或刷新一条索引条目。
func (r *RedisGameListStore) Upsert(ctx context.Context, appID, userID, gameID string, entry domain.GameListEntry) error {
	key := r.listKey(appID, userID)
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal game list entry for room %s: %w", gameID, err)
	}
	if err := r.client.HSet(ctx, key, gameID, string(raw)).Err(); err != nil {
		return fmt.Errorf("redis: failed to upsert game list entry on %s field %s: %w", key, gameID, err)
	}
	return nil
}

// Remove 删除一条索引条目，条目不存在不视为错误。
func (r *RedisGameListStore) Remove(ctx context.Context, appID, userID, gameID string) error {
	key := r.listKey(appID, userID)
	if err := r.client.HDel(ctx, key, gameID).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove game list entry on %s field %s: %w", key, gameID, err)
	}
	return nil
}

// GetEntry 读取单条索引条目。
func (r *RedisGameListStore) GetEntry(ctx context.Context, appID, userID, gameID string) (*domain.GameListEntry, error) {
	key := r.listKey(appID, userID)
	raw, err := r.client.HGet(ctx, key, gameID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrEntryNotFound
		}
		return nil, fmt.Errorf("redis: failed to get game list entry from %s field %s: %w", key, gameID, err)
	}
	var entry domain.GameListEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal game list entry from %s field %s: %w", key, gameID, err)
	}
	return &entry, nil
}

// ListForPlayer 返回玩家的全部索引条目。
func (r *RedisGameListStore) ListForPlayer(ctx context.Context, appID, userID string) (map[string]domain.GameListEntry, error) {
	key := r.listKey(appID, userID)
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list game list entries from %s: %w", key, err)
	}
	entries := make(map[string]domain.GameListEntry, len(raw))
	for gameID, value := range raw {
		var entry domain.GameListEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"key":     key,
				"game_id": gameID,
			}).Warn("redis: skipping unparseable game list entry")
			continue
		}
		entries[gameID] = entry
	}
	return entries, nil
}

// BatchGet 对同一玩家的索引做一次 HMGET 批量读取。
func (r *RedisGameListStore) BatchGet(ctx context.Context, appID, userID string, gameIDs []string) (map[string]domain.GameListEntry, error) {
	if len(gameIDs) == 0 {
		return map[string]domain.GameListEntry{}, nil
	}
	key := r.listKey(appID, userID)
	values, err := r.client.HMGet(ctx, key, gameIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to batch get game list entries from %s: %w", key, err)
	}
	entries := make(map[string]domain.GameListEntry, len(gameIDs))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok || raw == "" {
			continue // 条目不存在
		}
		var entry domain.GameListEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"key":     key,
				"game_id": gameIDs[i],
			}).Warn("redis: skipping unparseable game list entry in batch")
			continue
		}
		entries[gameIDs[i]] = entry
	}
	return entries, nil
}
