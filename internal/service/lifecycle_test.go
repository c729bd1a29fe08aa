package service_test // 测试包

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
	"room-webhooks/internal/repository/mocks"
	"room-webhooks/internal/service"
)

// lifecycleFixture 组装一个带全套 Mock 依赖的 LifecycleService。
type lifecycleFixture struct {
	rooms  *mocks.RoomStore
	sweeps *mocks.SweepScheduler
	lists  *mocks.GameListStore
	audit  *mocks.AuditRepository
	svc    *service.LifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		rooms:  new(mocks.RoomStore),
		sweeps: new(mocks.SweepScheduler),
		lists:  new(mocks.GameListStore),
		audit:  new(mocks.AuditRepository),
	}
	validator := service.NewArgsValidator(f.audit)
	f.svc = service.NewLifecycleService(validator, f.rooms, f.sweeps, service.NewGameListService(f.lists))
	return f
}

// newTestRoom 构造一个 user-1 创建的房间记录，版本号 1。
func newTestRoom(opts domain.RoomOptions) *domain.RoomRecord {
	createEv := newValidEvent(domain.EventCreate)
	createEv.CreateOptions = &opts
	rec := domain.NewRoomRecord(createEv, time.Now().UTC())
	rec.Version = 1
	return rec
}

// --- Create ---

func TestHandleEvent_CreateSuccess(t *testing.T) {
	// Arrange
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventCreate)

	f.rooms.On("Create", mock.Anything, mock.MatchedBy(func(rec *domain.RoomRecord) bool {
		// 创建者固定占用 1 号席位
		assert.Equal(t, "game-1", rec.GameID)
		assert.Equal(t, "user-1", rec.Actors[1].UserID)
		assert.Equal(t, 2, rec.NextActorNr)
		return true
	})).Return(nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-1", "game-1", mock.AnythingOfType("domain.GameListEntry")).
		Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code, "创建成功结果码应为 0")
	assert.Equal(t, "room created", res.Message)
	f.rooms.AssertExpectations(t)
	f.lists.AssertExpectations(t)
}

func TestHandleEvent_CreateIdempotent(t *testing.T) {
	// Arrange: 记录已存在，重复创建按幂等处理
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventCreate)

	f.rooms.On("Create", mock.Anything, mock.AnythingOfType("*domain.RoomRecord")).
		Return(repository.ErrAlreadyExists).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert: 软成功，不触碰已有记录和索引
	assert.Equal(t, service.ResultOK, res.Code, "重复创建应返回软成功")
	assert.Equal(t, "room already exists", res.Message)
	f.lists.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_CreateRejectedByValidator(t *testing.T) {
	// Arrange: 校验失败时不触碰存储
	f := newLifecycleFixture()
	f.audit.On("Save", mock.Anything, mock.AnythingOfType("*domain.AuditRecord")).Return(nil).Once()
	ev := newValidEvent(domain.EventCreate)
	ev.CreateOptions = nil

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultMissingArgument, res.Code)
	f.rooms.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.audit.AssertExpectations(t)
}

// --- Join ---

func TestHandleEvent_JoinNewActor(t *testing.T) {
	// Arrange
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{MaxPlayers: 4})
	ev := newValidEvent(domain.EventJoin)
	ev.ActorNr = 2
	ev.UserID = "user-2"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		assert.Equal(t, "user-2", updated.Actors[2].UserID)
		assert.Equal(t, 3, updated.NextActorNr)
		assert.Len(t, updated.JoinEvents, 1, "应追加一条加入事件")
		return true
	}), int64(1)).Return(nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-2", "game-1", mock.AnythingOfType("domain.GameListEntry")).
		Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "actor joined", res.Message)
	f.rooms.AssertExpectations(t)
	f.lists.AssertExpectations(t)
}

func TestHandleEvent_JoinRoomFull(t *testing.T) {
	// Arrange: MaxPlayers = 1，只有创建者也算满员
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{MaxPlayers: 1})
	ev := newValidEvent(domain.EventJoin)
	ev.ActorNr = 2
	ev.UserID = "user-2"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert: 拒绝且不写回
	assert.Equal(t, service.ResultSemanticMismatch, res.Code)
	f.rooms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_RejoinClearsSweep(t *testing.T) {
	// Arrange: 2 号席位离线保留中，重连应撤销清扫登记
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{PlayerTTLMs: 60000})
	rec.Actors[2] = domain.Actor{UserID: "user-2", Inactive: true}
	rec.NextActorNr = 3
	ev := newValidEvent(domain.EventJoin)
	ev.ActorNr = 2
	ev.UserID = "user-2"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.AnythingOfType("*domain.RoomRecord"), int64(1)).Return(nil).Once()
	f.sweeps.On("ClearSweep", mock.Anything, repository.SweepEntry{AppID: "app-1", GameID: "game-1", ActorNr: 2}).
		Return(nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-2", "game-1", mock.AnythingOfType("domain.GameListEntry")).
		Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "actor rejoined", res.Message)
	f.sweeps.AssertExpectations(t)
}

// --- Leave ---

func TestHandleEvent_LeaveRecoverableSchedulesSweep(t *testing.T) {
	// Arrange: 可恢复的离开 + PlayerTTL > 0 应登记清扫
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{PlayerTTLMs: 60000})
	rec.Actors[2] = domain.Actor{UserID: "user-2"}
	rec.NextActorNr = 3
	ev := newValidEvent("ClientDisconnect")
	ev.ActorNr = 2
	ev.UserID = "user-2"
	ev.Inactive = boolPtr(true)
	ev.Reason = "0"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		assert.True(t, updated.Actors[2].Inactive, "席位应标记离线")
		assert.Len(t, updated.LeaveEvents, 1)
		return true
	}), int64(1)).Return(nil).Once()
	f.sweeps.On("ScheduleSweep", mock.Anything,
		repository.SweepEntry{AppID: "app-1", GameID: "game-1", ActorNr: 2},
		mock.AnythingOfType("time.Time")).Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "actor marked inactive", res.Message)
	f.sweeps.AssertExpectations(t)
	// 席位保留时不删除索引条目
	f.lists.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_LeaveRemoved(t *testing.T) {
	// Arrange: 不可恢复的离开移除席位并删除索引条目
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	rec.Actors[2] = domain.Actor{UserID: "user-2"}
	rec.NextActorNr = 3
	ev := newValidEvent("LeaveRequest")
	ev.ActorNr = 2
	ev.UserID = "user-2"
	ev.Inactive = boolPtr(false)
	ev.Reason = "101"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		_, exists := updated.Actors[2]
		assert.False(t, exists, "席位应被移除")
		return true
	}), int64(1)).Return(nil).Once()
	f.lists.On("Remove", mock.Anything, "app-1", "user-2", "game-1").Return(nil).Once()
	f.sweeps.On("ClearSweep", mock.Anything, mock.AnythingOfType("repository.SweepEntry")).Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "actor removed", res.Message)
	f.lists.AssertExpectations(t)
}

// --- Save / Load ---

func TestHandleEvent_SaveSuccess(t *testing.T) {
	// Arrange: ActorCount 与花名册大小一致
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	ev := newValidEvent(domain.EventSave)
	ev.ActorCount = intPtr(1)
	ev.State = `{"turn":3}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		assert.Equal(t, `{"turn":3}`, updated.State, "不透明状态应被写入")
		assert.Len(t, updated.SaveEvents, 1)
		return true
	}), int64(1)).Return(nil).Once()
	// 保存后刷新创建者的索引条目
	f.lists.On("Upsert", mock.Anything, "app-1", "user-1", "game-1", mock.AnythingOfType("domain.GameListEntry")).
		Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "relay", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "state saved", res.Message)
	f.rooms.AssertExpectations(t)
	f.lists.AssertExpectations(t)
}

func TestHandleEvent_SaveCountMismatch(t *testing.T) {
	// Arrange: 花名册只有创建者，ActorCount 却是 5
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	ev := newValidEvent(domain.EventSave)
	ev.ActorCount = intPtr(5)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "relay", ev)

	// Assert
	assert.Equal(t, service.ResultSemanticMismatch, res.Code)
	f.rooms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_LoadExistingRoom(t *testing.T) {
	// Arrange
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	rec.State = `{"board":["x"]}`
	ev := newValidEvent(domain.EventLoad)

	// 一次加载完成读取和事件追加
	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		assert.Len(t, updated.LoadEvents, 1, "应追加一条加载事件")
		return true
	}), int64(1)).Return(nil).Once()
	// 调用方的索引条目完好，无需修复
	f.lists.On("GetEntry", mock.Anything, "app-1", "user-1", "game-1").
		Return(&domain.GameListEntry{ActorNr: 1}, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, `{"board":["x"]}`, res.State, "Load 应返回保存的不透明状态")
	f.rooms.AssertExpectations(t)
	f.rooms.AssertNumberOfCalls(t, "Get", 1)
	f.lists.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_LoadRepairsMissingIndexEntry(t *testing.T) {
	// Arrange: 调用方的索引条目缺失，从创建者的条目修复
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	rec.Actors[2] = domain.Actor{UserID: "user-2"}
	rec.NextActorNr = 3
	ev := newValidEvent(domain.EventLoad)
	ev.ActorNr = 2
	ev.UserID = "user-2"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.AnythingOfType("*domain.RoomRecord"), int64(1)).Return(nil).Once()
	f.lists.On("GetEntry", mock.Anything, "app-1", "user-2", "game-1").
		Return(nil, repository.ErrEntryNotFound).Once()
	creatorProps := map[string]interface{}{"mode": "ranked"}
	f.lists.On("GetEntry", mock.Anything, "app-1", "user-1", "game-1").
		Return(&domain.GameListEntry{ActorNr: 1, Properties: creatorProps, CreatorID: "user-1"}, nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-2", "game-1", mock.MatchedBy(func(entry domain.GameListEntry) bool {
		assert.Equal(t, 2, entry.ActorNr, "修复的条目应携带调用方自己的席位号")
		assert.Equal(t, "ranked", entry.Properties["mode"], "属性应取自创建者的条目")
		return true
	})).Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	f.lists.AssertExpectations(t)
}

func TestHandleEvent_LoadAbsentRoomNoCreate(t *testing.T) {
	// Arrange: 记录不存在且禁止引导创建
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventLoad)
	ev.CreateIfNotExists = boolPtr(false)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(nil, repository.ErrRoomNotFound).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultNotFound, res.Code, "缺失且禁止创建应返回 NotFound")
	f.rooms.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleEvent_LoadAbsentRoomBootstraps(t *testing.T) {
	// Arrange: 记录不存在但允许引导创建
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventLoad)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(nil, repository.ErrRoomNotFound).Once()
	f.rooms.On("Create", mock.Anything, mock.MatchedBy(func(rec *domain.RoomRecord) bool {
		assert.Equal(t, domain.EventLoad, rec.Creation.Type, "创建信息应记录触发类型 Load")
		return true
	})).Return(nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-1", "game-1", mock.AnythingOfType("domain.GameListEntry")).
		Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Empty(t, res.State, "引导创建的房间没有已保存状态")
	f.rooms.AssertExpectations(t)
}

// --- Close ---

func TestHandleEvent_CloseSuccess(t *testing.T) {
	// Arrange: 所有席位都已离开
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	rec.Actors = map[int]domain.Actor{}
	ev := newValidEvent(domain.EventClose)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Delete", mock.Anything, "app-1", "game-1").Return(nil).Once()
	f.lists.On("Remove", mock.Anything, "app-1", "user-1", "game-1").Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "relay", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "room closed", res.Message)
	f.rooms.AssertExpectations(t)
	f.lists.AssertExpectations(t)
}

func TestHandleEvent_CloseCountMismatch(t *testing.T) {
	// Arrange: 花名册还有创建者，Close 被拒绝且房间保持原状
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	ev := newValidEvent(domain.EventClose)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "relay", ev)

	// Assert
	assert.Equal(t, service.ResultSemanticMismatch, res.Code)
	f.rooms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_CloseAbsentRoom(t *testing.T) {
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventClose)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(nil, repository.ErrRoomNotFound).Once()

	res := f.svc.HandleEvent(context.Background(), "relay", ev)

	assert.Equal(t, service.ResultNotFound, res.Code, "关闭不存在的房间应返回 NotFound")
}

// --- 属性与自定义事件 ---

func TestHandleEvent_GamePropertiesMergeAndRefreshIndex(t *testing.T) {
	// Arrange: Game 事件合并房间自定义属性并刷新创建者的索引条目
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{CustomProperties: map[string]interface{}{"mode": "casual"}})
	ev := newValidEvent(domain.EventGame)
	ev.Properties = map[string]interface{}{"map": "forest", "mode": "ranked"}
	ev.State = `{"board":[]}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		assert.Equal(t, "forest", updated.Options.CustomProperties["map"], "新属性应被合并")
		assert.Equal(t, "ranked", updated.Options.CustomProperties["mode"], "已有属性应被覆盖")
		return true
	}), int64(1)).Return(nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-1", "game-1", mock.MatchedBy(func(entry domain.GameListEntry) bool {
		assert.Equal(t, "forest", entry.Properties["map"], "索引条目应携带合并后的属性")
		return true
	})).Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "room properties updated", res.Message)
	f.rooms.AssertExpectations(t)
	f.lists.AssertExpectations(t)
}

func TestHandleEvent_PlayerPropertiesMerge(t *testing.T) {
	// Arrange: Player 事件合并到席位属性
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	rec.Actors[2] = domain.Actor{UserID: "user-2", Properties: map[string]interface{}{"color": "red"}}
	rec.NextActorNr = 3
	ev := newValidEvent(domain.EventPlayer)
	ev.ActorNr = 2
	ev.UserID = "user-2"
	ev.Properties = map[string]interface{}{"score": 9}
	ev.State = `{"board":[]}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		assert.Equal(t, 9, updated.Actors[2].Properties["score"], "新属性应被合并到席位")
		assert.Equal(t, "red", updated.Actors[2].Properties["color"], "已有席位属性应保留")
		return true
	}), int64(1)).Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "actor properties updated", res.Message)
	f.rooms.AssertExpectations(t)
}

func TestHandleEvent_PlayerPropertiesUnknownActor(t *testing.T) {
	// Arrange: 席位不在花名册中
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	ev := newValidEvent(domain.EventPlayer)
	ev.ActorNr = 9
	ev.UserID = "user-9"
	ev.Properties = map[string]interface{}{"score": 9}
	ev.State = `{"board":[]}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-9", ev)

	// Assert: 拒绝且不写回
	assert.Equal(t, service.ResultSemanticMismatch, res.Code)
	f.rooms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_PlayerPropertiesWrongUser(t *testing.T) {
	// Arrange: 席位由另一个用户占用
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	rec.Actors[2] = domain.Actor{UserID: "user-2"}
	rec.NextActorNr = 3
	ev := newValidEvent(domain.EventPlayer)
	ev.ActorNr = 2
	ev.UserID = "user-3"
	ev.Properties = map[string]interface{}{"score": 9}
	ev.State = `{"board":[]}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-3", ev)

	// Assert
	assert.Equal(t, service.ResultSemanticMismatch, res.Code)
	f.rooms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_EventAcknowledgedWithoutWrite(t *testing.T) {
	// Arrange: 自定义事件只确认房间存在，不改变状态
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	ev := newValidEvent(domain.EventEvent)
	ev.Data = map[string]interface{}{"move": "e4"}
	ev.State = `{"board":[]}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	assert.Equal(t, "event acknowledged", res.Message)
	f.rooms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	f.lists.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_EventOnAbsentRoom(t *testing.T) {
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventEvent)
	ev.Data = map[string]interface{}{"move": "e4"}
	ev.State = `{"board":[]}`

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(nil, repository.ErrRoomNotFound).Once()

	res := f.svc.HandleEvent(context.Background(), "user-1", ev)

	assert.Equal(t, service.ResultNotFound, res.Code, "房间不存在的自定义事件应返回 NotFound")
}

func TestHandleEvent_SaveSkipsIndexForDepartedCreator(t *testing.T) {
	// Arrange: 创建者已真正离开，保存不应替其重建索引条目
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{})
	delete(rec.Actors, 1)
	rec.Actors[2] = domain.Actor{UserID: "user-2"}
	rec.NextActorNr = 3
	ev := newValidEvent(domain.EventSave)
	ev.ActorCount = intPtr(1)

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.AnythingOfType("*domain.RoomRecord"), int64(1)).Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "relay", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code)
	f.lists.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- 乐观并发 ---

func TestHandleEvent_VersionConflictRetries(t *testing.T) {
	// Arrange: 第一次写回版本冲突，重载后第二次成功
	f := newLifecycleFixture()
	first := newTestRoom(domain.RoomOptions{MaxPlayers: 4})
	second := newTestRoom(domain.RoomOptions{MaxPlayers: 4})
	second.Version = 2
	ev := newValidEvent(domain.EventJoin)
	ev.ActorNr = 2
	ev.UserID = "user-2"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(first, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.AnythingOfType("*domain.RoomRecord"), int64(1)).
		Return(repository.ErrVersionConflict).Once()
	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(second, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.AnythingOfType("*domain.RoomRecord"), int64(2)).
		Return(nil).Once()
	f.lists.On("Upsert", mock.Anything, "app-1", "user-2", "game-1", mock.AnythingOfType("domain.GameListEntry")).
		Return(nil).Once()

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultOK, res.Code, "版本冲突后的重放应成功")
	f.rooms.AssertExpectations(t)
}

func TestHandleEvent_VersionConflictExhausted(t *testing.T) {
	// Arrange: 写回始终冲突，重试次数用尽后放弃
	f := newLifecycleFixture()
	ev := newValidEvent(domain.EventJoin)
	ev.ActorNr = 2
	ev.UserID = "user-2"

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").
		Return(newTestRoom(domain.RoomOptions{MaxPlayers: 4}), nil).Once()
	f.rooms.On("Get", mock.Anything, "app-1", "game-1").
		Return(newTestRoom(domain.RoomOptions{MaxPlayers: 4}), nil).Once()
	f.rooms.On("Get", mock.Anything, "app-1", "game-1").
		Return(newTestRoom(domain.RoomOptions{MaxPlayers: 4}), nil).Once()
	f.rooms.On("Update", mock.Anything, mock.AnythingOfType("*domain.RoomRecord"), mock.AnythingOfType("int64")).
		Return(repository.ErrVersionConflict)

	// Act
	res := f.svc.HandleEvent(context.Background(), "user-2", ev)

	// Assert
	assert.Equal(t, service.ResultUnexpected, res.Code, "重试用尽应折叠为未预期失败")
	f.rooms.AssertNumberOfCalls(t, "Update", 3)
}

// --- TTL 清扫 ---

func TestExpireActorTTL_RemovesInactiveSlot(t *testing.T) {
	// Arrange
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{PlayerTTLMs: 60000})
	rec.Actors[2] = domain.Actor{UserID: "user-2", Inactive: true}
	rec.NextActorNr = 3
	sweep := repository.SweepEntry{AppID: "app-1", GameID: "game-1", ActorNr: 2}

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()
	f.rooms.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.RoomRecord) bool {
		_, exists := updated.Actors[2]
		assert.False(t, exists, "保留超时的席位应被移除")
		return true
	}), int64(1)).Return(nil).Once()
	f.lists.On("Remove", mock.Anything, "app-1", "user-2", "game-1").Return(nil).Once()

	// Act
	err := f.svc.ExpireActorTTL(context.Background(), sweep)

	// Assert
	assert.NoError(t, err)
	f.rooms.AssertExpectations(t)
	f.lists.AssertExpectations(t)
}

func TestExpireActorTTL_SkipsReconnectedSlot(t *testing.T) {
	// Arrange: 席位已重连（活跃），清扫应静默跳过
	f := newLifecycleFixture()
	rec := newTestRoom(domain.RoomOptions{PlayerTTLMs: 60000})
	rec.Actors[2] = domain.Actor{UserID: "user-2"}
	rec.NextActorNr = 3
	sweep := repository.SweepEntry{AppID: "app-1", GameID: "game-1", ActorNr: 2}

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(rec, nil).Once()

	// Act
	err := f.svc.ExpireActorTTL(context.Background(), sweep)

	// Assert
	require.NoError(t, err)
	f.rooms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	f.lists.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExpireActorTTL_RoomAlreadyClosed(t *testing.T) {
	// Arrange: 房间已关闭，清扫视为已完成
	f := newLifecycleFixture()
	sweep := repository.SweepEntry{AppID: "app-1", GameID: "game-1", ActorNr: 2}

	f.rooms.On("Get", mock.Anything, "app-1", "game-1").Return(nil, repository.ErrRoomNotFound).Once()

	// Act
	err := f.svc.ExpireActorTTL(context.Background(), sweep)

	// Assert
	assert.NoError(t, err, "房间不存在不是清扫错误")
}
