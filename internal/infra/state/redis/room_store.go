// Package redisstate 用 Redis 实现房间记录与玩家索引的键值存储适配。
// 存储侧的值都是不透明字符串：结构化字段在这里完成 JSON 编解码，
// 核心层只接触原生结构化类型。
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
)

// 房间 hash 的字段名。Creation 只写一次。
const (
	fieldEnv         = "Env"
	fieldOptions     = "RoomOptions"
	fieldCreation    = "Creation"
	fieldActors      = "Actors"
	fieldNextActorNr = "NextActorNr"
	fieldJoinEvents  = "JoinEvents"
	fieldLeaveEvents = "LeaveEvents"
	fieldLoadEvents  = "LoadEvents"
	fieldSaveEvents  = "SaveEvents"
	fieldState       = "State"
	fieldVersion     = "Version"
)

// RedisRoomStore 是 RoomStore 和 SweepScheduler 接口的 Redis 实现。
type RedisRoomStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoomStore 创建 RedisRoomStore 实例。
func NewRedisRoomStore(client *redis.Client, keyPrefix string) *RedisRoomStore {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomStore")
	}
	if keyPrefix == "" {
		keyPrefix = "rw:"
	}
	return &RedisRoomStore{client: client, keyPrefix: keyPrefix}
}

// --- Key Generation Helpers ---

func (r *RedisRoomStore) roomKey(appID, gameID string) string {
	return fmt.Sprintf("%sroom:%s:%s", r.keyPrefix, appID, gameID)
}

func (r *RedisRoomStore) sweepKey() string {
	return r.keyPrefix + "ttl_sweeps"
}

// --- RoomStore Interface Implementation ---

// Create 创建新的房间记录。
// WATCH 房间键并确认其不存在，整条记录在 MULTI 中一次写入：
// 并发创建同一房间时只有一个写者成功，读者不会观察到半写入的记录。
func (r *RedisRoomStore) Create(ctx context.Context, rec *domain.RoomRecord) error {
	key := r.roomKey(rec.Env.AppID, rec.GameID)

	rec.Version = 1
	fields, err := encodeRoomRecord(rec)
	if err != nil {
		return fmt.Errorf("redis: failed to encode room record %s: %w", rec.GameID, err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return repository.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// 事务被并发写打断：另一个创建者赢得了这个键
			return repository.ErrAlreadyExists
		}
		if errors.Is(err, repository.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("redis: failed to create room %s on key %s: %w", rec.GameID, key, err)
	}
	return nil
}

// Get 加载并解码房间记录。
func (r *RedisRoomStore) Get(ctx context.Context, appID, gameID string) (*domain.RoomRecord, error) {
	key := r.roomKey(appID, gameID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get room record from %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrRoomNotFound
	}
	rec, err := decodeRoomRecord(gameID, fields)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to decode room record from %s: %w", key, err)
	}
	return rec, nil
}

// Update 带乐观并发令牌写回房间记录。
// WATCH 房间键并比对版本号，版本过期或事务被并发写打断都映射为
// repository.ErrVersionConflict，由调用方决定是否重载重放。
func (r *RedisRoomStore) Update(ctx context.Context, rec *domain.RoomRecord, expectedVersion int64) error {
	key := r.roomKey(rec.Env.AppID, rec.GameID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		currentStr, err := tx.HGet(ctx, key, fieldVersion).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return repository.ErrRoomNotFound
			}
			return err
		}
		current, err := strconv.ParseInt(currentStr, 10, 64)
		if err != nil {
			return fmt.Errorf("bad version value '%s': %w", currentStr, err)
		}
		if current != expectedVersion {
			return repository.ErrVersionConflict
		}

		rec.Version = expectedVersion + 1
		fields, err := encodeRoomRecord(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// 事务被并发写打断，等价于版本过期
			return repository.ErrVersionConflict
		}
		if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("redis: failed to update room record on %s: %w", key, err)
	}
	return nil
}

// Delete 删除房间记录。
func (r *RedisRoomStore) Delete(ctx context.Context, appID, gameID string) error {
	key := r.roomKey(appID, gameID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete room record %s: %w", key, err)
	}
	return nil
}

// --- SweepScheduler Interface Implementation ---

// ScheduleSweep 用 sorted set 登记席位保留的到期时刻（毫秒时间戳作分值）。
func (r *RedisRoomStore) ScheduleSweep(ctx context.Context, entry repository.SweepEntry, due time.Time) error {
	err := r.client.ZAdd(ctx, r.sweepKey(), &redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: sweepMember(entry),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to schedule TTL sweep for room %s actor %d: %w", entry.GameID, entry.ActorNr, err)
	}
	return nil
}

// DueSweeps 返回截至 now 已到期的清扫条目。
func (r *RedisRoomStore) DueSweeps(ctx context.Context, now time.Time, limit int64) ([]repository.SweepEntry, error) {
	members, err := r.client.ZRangeByScore(ctx, r.sweepKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read due TTL sweeps: %w", err)
	}
	entries := make([]repository.SweepEntry, 0, len(members))
	for _, member := range members {
		entry, err := parseSweepMember(member)
		if err != nil {
			// 不可解析的残留条目直接清掉，避免永久卡在队首
			r.client.ZRem(ctx, r.sweepKey(), member)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearSweep 移除一条清扫登记。
func (r *RedisRoomStore) ClearSweep(ctx context.Context, entry repository.SweepEntry) error {
	if err := r.client.ZRem(ctx, r.sweepKey(), sweepMember(entry)).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear TTL sweep for room %s actor %d: %w", entry.GameID, entry.ActorNr, err)
	}
	return nil
}

func sweepMember(entry repository.SweepEntry) string {
	return fmt.Sprintf("%s|%s|%d", entry.AppID, entry.GameID, entry.ActorNr)
}

func parseSweepMember(member string) (repository.SweepEntry, error) {
	parts := strings.Split(member, "|")
	if len(parts) != 3 {
		return repository.SweepEntry{}, fmt.Errorf("malformed sweep member '%s'", member)
	}
	actorNr, err := strconv.Atoi(parts[2])
	if err != nil {
		return repository.SweepEntry{}, fmt.Errorf("malformed sweep member '%s': %w", member, err)
	}
	return repository.SweepEntry{AppID: parts[0], GameID: parts[1], ActorNr: actorNr}, nil
}
