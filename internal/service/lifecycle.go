package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
)

// maxUpdateAttempts 乐观并发冲突时在同一次调用内重载重放的次数上限。
// 超过后放弃，由中继的至少一次投递负责重试。
const maxUpdateAttempts = 3

// errNoChange 转移函数用它表示本次事件无需写回（例如清扫时席位已重连）。
var errNoChange = errors.New("lifecycle: no state change")

// EventResult 单个事件的处理结果，结果码 0 表示成功。
type EventResult struct {
	Code    ResultCode
	Message string
	State   string
}

// LifecycleService 房间生命周期状态机。
// 每个 webhook 事件都是无状态的独立调用：校验信封、加载当前房间记录、
// 把花名册变更委托给纯函数、带版本号写回，并同步玩家游戏列表索引。
// 任何失败都在这里折叠为结果码，不让错误越过处理器边界。
type LifecycleService struct {
	validator *ArgsValidator
	rooms     repository.RoomStore
	sweeps    repository.SweepScheduler
	gameLists *GameListService
}

// NewLifecycleService 创建 LifecycleService 实例。
func NewLifecycleService(validator *ArgsValidator, rooms repository.RoomStore, sweeps repository.SweepScheduler, gameLists *GameListService) *LifecycleService {
	if validator == nil {
		panic("ArgsValidator cannot be nil for LifecycleService")
	}
	if rooms == nil {
		panic("RoomStore cannot be nil for LifecycleService")
	}
	if sweeps == nil {
		panic("SweepScheduler cannot be nil for LifecycleService")
	}
	if gameLists == nil {
		panic("GameListService cannot be nil for LifecycleService")
	}
	return &LifecycleService{
		validator: validator,
		rooms:     rooms,
		sweeps:    sweeps,
		gameLists: gameLists,
	}
}

// HandleEvent 处理一个房间生命周期事件并返回统一的结果。
// callerID 是已认证调用方的用户 ID。
func (s *LifecycleService) HandleEvent(ctx context.Context, callerID string, ev *domain.WebhookEvent) EventResult {
	logCtx := logrus.WithFields(logrus.Fields{
		"app_id":     ev.AppID,
		"game_id":    ev.GameID,
		"event_type": ev.Type,
		"caller_id":  callerID,
	})

	if err := s.validator.ValidateEvent(ctx, callerID, ev); err != nil {
		code, message := CollapseError(err)
		logCtx.WithField("result_code", code).Warnf("Event rejected by validator: %s", message)
		return EventResult{Code: code, Message: message}
	}

	var (
		state   string
		message string
		err     error
	)
	switch {
	case ev.Type == domain.EventCreate:
		message, err = s.handleCreate(ctx, ev)
	case ev.Type == domain.EventLoad:
		state, message, err = s.handleLoad(ctx, callerID, ev)
	case ev.Type == domain.EventJoin:
		message, err = s.handleJoin(ctx, ev)
	case ev.Type == domain.EventSave:
		message, err = s.handleSave(ctx, ev)
	case ev.Type == domain.EventClose:
		message, err = s.handleClose(ctx, ev)
	case ev.Type == domain.EventPlayer || ev.Type == domain.EventGame || ev.Type == domain.EventEvent:
		message, err = s.handleProperties(ctx, ev)
	default:
		// 校验器保证剩余类型都是离开类事件
		message, err = s.handleLeave(ctx, ev)
	}

	if err != nil {
		code, collapsed := CollapseError(err)
		entry := logCtx.WithField("result_code", code)
		if code == ResultUnexpected {
			entry.WithError(err).Error("Event handling failed")
		} else {
			entry.Warnf("Event rejected: %s", collapsed)
		}
		return EventResult{Code: code, Message: collapsed}
	}

	logCtx.Info("Event handled")
	return EventResult{Code: ResultOK, Message: message, State: state}
}

// handleCreate 执行 Absent→Created 转移。
// 创建冲突（记录已存在）按幂等创建处理，返回软成功而非失败。
func (s *LifecycleService) handleCreate(ctx context.Context, ev *domain.WebhookEvent) (string, error) {
	rec := domain.NewRoomRecord(ev, time.Now().UTC())

	err := s.rooms.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			logrus.WithFields(logrus.Fields{"game_id": ev.GameID, "user_id": ev.UserID}).
				Info("Create for existing room, treating as idempotent success")
			return "room already exists", nil
		}
		return "", NewUnexpected(err)
	}

	s.upsertIndexEntry(ctx, rec, ev.UserID, 1)
	return "room created", nil
}

// handleLoad 解析房间记录并返回其不透明状态。
// 直接走 updateRoom 追加加载事件，一次往返；记录不存在时：
// 禁止创建则失败，否则引导创建并返回空状态。
func (s *LifecycleService) handleLoad(ctx context.Context, callerID string, ev *domain.WebhookEvent) (string, string, error) {
	rec, err := s.updateRoom(ctx, ev.AppID, ev.GameID, func(rec *domain.RoomRecord) error {
		rec.LoadEvents[eventLogKey()] = domain.LoadEvent{
			ActorNr: rec.ActorByUserID(ev.UserID),
			UserID:  ev.UserID,
		}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if !errors.As(err, &svcErr) || svcErr.Code != ResultNotFound {
			return "", "", err
		}
		if !*ev.CreateIfNotExists {
			return "", "", err
		}
		message, createErr := s.handleCreate(ctx, ev)
		return "", message, createErr
	}

	s.repairCallerIndex(ctx, rec, callerID)
	return rec.State, "room loaded", nil
}

// handleJoin 执行加入或重连转移，并刷新调用方的索引条目。
func (s *LifecycleService) handleJoin(ctx context.Context, ev *domain.WebhookEvent) (string, error) {
	var kind JoinKind
	rec, err := s.updateRoom(ctx, ev.AppID, ev.GameID, func(rec *domain.RoomRecord) error {
		res, err := ApplyJoin(rec.Actors, rec.NextActorNr, rec.Options, ev.ActorNr, ev.UserID)
		if err != nil {
			return err
		}
		rec.Actors = res.Actors
		rec.NextActorNr = res.NextActorNr
		rec.JoinEvents[eventLogKey()] = domain.JoinEvent{ActorNr: ev.ActorNr, UserID: ev.UserID}
		kind = res.Kind
		return nil
	})
	if err != nil {
		return "", err
	}

	if kind == JoinRejoin {
		// 席位已重新占用，撤销可能存在的保留超时清扫
		sweep := repository.SweepEntry{AppID: ev.AppID, GameID: ev.GameID, ActorNr: ev.ActorNr}
		if err := s.sweeps.ClearSweep(ctx, sweep); err != nil {
			logrus.WithError(err).WithField("game_id", ev.GameID).Warn("Failed to clear TTL sweep after rejoin")
		}
	}

	s.upsertIndexEntry(ctx, rec, ev.UserID, ev.ActorNr)
	if kind == JoinRejoin {
		return "actor rejoined", nil
	}
	return "actor joined", nil
}

// handleLeave 执行离开转移。可恢复的离开保留席位等待重连，
// 否则移除席位并删除该玩家的索引条目。
func (s *LifecycleService) handleLeave(ctx context.Context, ev *domain.WebhookEvent) (string, error) {
	recoverable := *ev.Inactive

	var outcome RosterLeave
	rec, err := s.updateRoom(ctx, ev.AppID, ev.GameID, func(rec *domain.RoomRecord) error {
		res, err := ApplyLeave(rec.Actors, ev.ActorNr, ev.UserID, recoverable, ev.Type)
		if err != nil {
			return err
		}
		rec.Actors = res.Actors
		rec.LeaveEvents[eventLogKey()] = domain.LeaveEvent{
			ActorNr:   ev.ActorNr,
			UserID:    ev.UserID,
			Reason:    ev.Reason,
			CanRejoin: res.CanRejoin,
		}
		outcome = res
		return nil
	})
	if err != nil {
		return "", err
	}

	sweep := repository.SweepEntry{AppID: ev.AppID, GameID: ev.GameID, ActorNr: ev.ActorNr}
	if outcome.Kind == LeaveRemoved {
		s.removeIndexEntry(ctx, ev.AppID, ev.UserID, ev.GameID)
		if err := s.sweeps.ClearSweep(ctx, sweep); err != nil {
			logrus.WithError(err).WithField("game_id", ev.GameID).Warn("Failed to clear TTL sweep after removal")
		}
		return "actor removed", nil
	}

	if rec.Options.PlayerTTLMs > 0 {
		due := time.Now().Add(time.Duration(rec.Options.PlayerTTLMs) * time.Millisecond)
		if err := s.sweeps.ScheduleSweep(ctx, sweep, due); err != nil {
			logrus.WithError(err).WithField("game_id", ev.GameID).Warn("Failed to schedule TTL sweep")
		}
	}
	return "actor marked inactive", nil
}

// handleSave 校验 actor 数量后把不透明状态写入记录并追加保存事件，
// 随后刷新创建者的索引条目。记录的持久形式保持不变，等待后续 Load。
func (s *LifecycleService) handleSave(ctx context.Context, ev *domain.WebhookEvent) (string, error) {
	rec, err := s.updateRoom(ctx, ev.AppID, ev.GameID, func(rec *domain.RoomRecord) error {
		if *ev.ActorCount != rec.RosterSize() {
			return NewSemanticMismatch("actor count %d does not match roster size %d", *ev.ActorCount, rec.RosterSize())
		}
		rec.State = ev.State
		rec.SaveEvents[eventLogKey()] = domain.SaveEvent{UserID: ev.UserID, ActorCount: *ev.ActorCount}
		return nil
	})
	if err != nil {
		return "", err
	}

	// 创建者已真正离开时不替其重建索引条目
	if creatorNr := rec.ActorByUserID(rec.Creation.UserID); creatorNr > 0 {
		s.upsertIndexEntry(ctx, rec, rec.Creation.UserID, creatorNr)
	}
	return "state saved", nil
}

// handleClose 校验 actor 数量后删除房间记录并移除创建者的索引条目。
// Close 是该房间 ID 的终态，之后同一 ID 可重新开始 Absent→Created。
func (s *LifecycleService) handleClose(ctx context.Context, ev *domain.WebhookEvent) (string, error) {
	rec, err := s.rooms.Get(ctx, ev.AppID, ev.GameID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", NewNotFound(ev.GameID)
		}
		return "", NewUnexpected(err)
	}
	if *ev.ActorCount != rec.RosterSize() {
		// 数量不符拒绝关闭，房间保持原状
		return "", NewSemanticMismatch("actor count %d does not match roster size %d", *ev.ActorCount, rec.RosterSize())
	}

	if err := s.rooms.Delete(ctx, ev.AppID, ev.GameID); err != nil {
		return "", NewUnexpected(err)
	}
	s.removeIndexEntry(ctx, ev.AppID, rec.Creation.UserID, ev.GameID)
	return "room closed", nil
}

// handleProperties 处理属性/自定义事件类 webhook。
// Game 合并房间自定义属性并刷新创建者索引；Player 合并席位属性；
// Event 仅确认房间存在，不改变状态。
func (s *LifecycleService) handleProperties(ctx context.Context, ev *domain.WebhookEvent) (string, error) {
	switch ev.Type {
	case domain.EventGame:
		rec, err := s.updateRoom(ctx, ev.AppID, ev.GameID, func(rec *domain.RoomRecord) error {
			if rec.Options.CustomProperties == nil {
				rec.Options.CustomProperties = map[string]interface{}{}
			}
			for k, val := range ev.Properties {
				rec.Options.CustomProperties[k] = val
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if creatorNr := rec.ActorByUserID(rec.Creation.UserID); creatorNr > 0 {
			s.upsertIndexEntry(ctx, rec, rec.Creation.UserID, creatorNr)
		}
		return "room properties updated", nil

	case domain.EventPlayer:
		_, err := s.updateRoom(ctx, ev.AppID, ev.GameID, func(rec *domain.RoomRecord) error {
			actor, ok := rec.Actors[ev.ActorNr]
			if !ok {
				return NewSemanticMismatch("actor %d is not in the roster", ev.ActorNr)
			}
			if actor.UserID != ev.UserID {
				return NewSemanticMismatch("actor %d is occupied by a different user", ev.ActorNr)
			}
			if actor.Properties == nil {
				actor.Properties = map[string]interface{}{}
			}
			for k, val := range ev.Properties {
				actor.Properties[k] = val
			}
			rec.Actors[ev.ActorNr] = actor
			return nil
		})
		if err != nil {
			return "", err
		}
		return "actor properties updated", nil

	default: // domain.EventEvent
		if _, err := s.rooms.Get(ctx, ev.AppID, ev.GameID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", NewNotFound(ev.GameID)
			}
			return "", NewUnexpected(err)
		}
		return "event acknowledged", nil
	}
}

// ExpireActorTTL 移除一个保留超时且仍处于离线状态的席位。
// 由周期清扫任务调用；席位已重连或房间已关闭时静默跳过。
func (s *LifecycleService) ExpireActorTTL(ctx context.Context, sweep repository.SweepEntry) error {
	var removedUserID string
	_, err := s.updateRoom(ctx, sweep.AppID, sweep.GameID, func(rec *domain.RoomRecord) error {
		actor, ok := rec.Actors[sweep.ActorNr]
		if !ok || !actor.Inactive {
			return errNoChange
		}
		res, err := ApplyLeave(rec.Actors, sweep.ActorNr, actor.UserID, false, domain.ReasonPlayerTTLTimedOut)
		if err != nil {
			return err
		}
		rec.Actors = res.Actors
		rec.LeaveEvents[eventLogKey()] = domain.LeaveEvent{
			ActorNr:   sweep.ActorNr,
			UserID:    actor.UserID,
			Reason:    domain.LeaveReasons[domain.ReasonPlayerTTLTimedOut],
			CanRejoin: false,
		}
		removedUserID = actor.UserID
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) && svcErr.Code == ResultNotFound {
			return nil
		}
		return err
	}

	if removedUserID != "" {
		s.removeIndexEntry(ctx, sweep.AppID, removedUserID, sweep.GameID)
	}
	return nil
}

// updateRoom 加载、变换并带版本号写回房间记录。
// 版本冲突时在本次调用内重载重放，最多 maxUpdateAttempts 次。
// fn 返回 errNoChange 时跳过写回；返回的 *Error 原样透传。
func (s *LifecycleService) updateRoom(ctx context.Context, appID, gameID string, fn func(*domain.RoomRecord) error) (*domain.RoomRecord, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rec, err := s.rooms.Get(ctx, appID, gameID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NewNotFound(gameID)
			}
			return nil, NewUnexpected(err)
		}

		observedVersion := rec.Version
		if err := fn(rec); err != nil {
			if errors.Is(err, errNoChange) {
				return rec, nil
			}
			return nil, err
		}

		err = s.rooms.Update(ctx, rec, observedVersion)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, NewUnexpected(err)
		}
		logrus.WithFields(logrus.Fields{
			"game_id": gameID,
			"attempt": attempt + 1,
		}).Warn("Version conflict on room update, reloading")
	}
	return nil, NewUnexpected(repository.ErrVersionConflict)
}

// upsertIndexEntry 用权威房间记录刷新一个玩家的索引条目。
// 索引写入失败不推翻已提交的转移，只记录日志；
// 缺失的条目会在后续 Load 时从创建者的索引修复。
func (s *LifecycleService) upsertIndexEntry(ctx context.Context, rec *domain.RoomRecord, userID string, actorNr int) {
	entry := domain.GameListEntry{
		ActorNr:    actorNr,
		Properties: rec.Options.CustomProperties,
		CreatorID:  rec.Creation.UserID,
		Env:        rec.Env,
		Creation:   rec.Creation,
	}
	if err := s.gameLists.Upsert(ctx, rec.Env.AppID, userID, rec.GameID, entry); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"game_id": rec.GameID,
			"user_id": userID,
		}).Error("Failed to upsert game list entry")
	}
}

func (s *LifecycleService) removeIndexEntry(ctx context.Context, appID, userID, gameID string) {
	if err := s.gameLists.Remove(ctx, appID, userID, gameID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"game_id": gameID,
			"user_id": userID,
		}).Error("Failed to remove game list entry")
	}
}

// repairCallerIndex 在 Load 时补全调用方缺失的索引条目。
// 先查调用方自己的索引；缺失且调用方不是创建者时，从创建者的索引
// 发现该房间的条目并补上调用方自己的席位号。
func (s *LifecycleService) repairCallerIndex(ctx context.Context, rec *domain.RoomRecord, callerID string) {
	appID := rec.Env.AppID
	if _, err := s.gameLists.GetEntry(ctx, appID, callerID, rec.GameID); err == nil {
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		logrus.WithError(err).WithField("game_id", rec.GameID).Warn("Failed to read caller game list entry")
		return
	}

	entry := domain.GameListEntry{
		ActorNr:    rec.ActorByUserID(callerID),
		Properties: rec.Options.CustomProperties,
		CreatorID:  rec.Creation.UserID,
		Env:        rec.Env,
		Creation:   rec.Creation,
	}
	if callerID != rec.Creation.UserID {
		if creatorEntry, err := s.gameLists.GetEntry(ctx, appID, rec.Creation.UserID, rec.GameID); err == nil {
			entry.Properties = creatorEntry.Properties
		}
	}
	if err := s.gameLists.Upsert(ctx, appID, callerID, rec.GameID, entry); err != nil {
		logrus.WithError(err).WithField("game_id", rec.GameID).Warn("Failed to repair caller game list entry")
	}
}

// eventLogKey 事件日志键：事件时间戳 (UnixNano) 的十进制串。
func eventLogKey() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
