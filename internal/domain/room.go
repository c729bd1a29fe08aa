package domain

import "time"

// EnvInfo 房间创建时捕获的环境快照，创建后不可变。
type EnvInfo struct {
	AppID          string `json:"appId"`
	AppVersion     string `json:"appVersion"`
	Region         string `json:"region"`
	TitleID        string `json:"titleId,omitempty"`
	ScriptRevision string `json:"scriptRevision,omitempty"`
}

// RoomOptions 房间创建时的配置选项。
type RoomOptions struct {
	MaxPlayers int `json:"maxPlayers"` // 0 表示不限制人数
	// PlayerTTLMs 玩家离线后席位保留的毫秒数，0 表示离开即移除席位
	PlayerTTLMs int64 `json:"playerTtl"`
	// CheckUserOnJoin 严格重连校验：重连时 userId 必须与原占用者一致
	CheckUserOnJoin  bool                   `json:"checkUserOnJoin"`
	CustomProperties map[string]interface{} `json:"customProperties,omitempty"`
}

// CreationInfo 记录房间的创建信息，写入后不可变。
type CreationInfo struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"` // 触发创建的事件类型: Create 或 Load
}

// Actor 房间花名册中的一个参与者席位。
// 席位号与占用者的用户身份是两个独立概念：席位号在房间内单调分配、永不复用。
type Actor struct {
	UserID     string                 `json:"userId"`
	Inactive   bool                   `json:"inactive"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// 花名册事件日志条目，按事件时间戳 (UnixNano) 为键追加，只增不删。

type JoinEvent struct {
	ActorNr int    `json:"actorNr"`
	UserID  string `json:"userId"`
}

type LeaveEvent struct {
	ActorNr   int    `json:"actorNr"`
	UserID    string `json:"userId"`
	Reason    string `json:"reason,omitempty"`
	CanRejoin bool   `json:"canRejoin"` // 席位是否保留等待重连
}

type LoadEvent struct {
	ActorNr int    `json:"actorNr,omitempty"`
	UserID  string `json:"userId"`
}

type SaveEvent struct {
	UserID     string `json:"userId,omitempty"`
	ActorCount int    `json:"actorCount"`
}

// RoomRecord 是一个房间的权威状态，持久化在外部键值存储中。
// 不变量:
//   - NextActorNr 严格大于 Actors 中曾出现过的任何席位号；
//   - len(Actors) 不超过 Options.MaxPlayers (MaxPlayers > 0 时)；
//   - Creation 只写一次。
type RoomRecord struct {
	GameID      string
	Env         EnvInfo
	Options     RoomOptions
	Creation    CreationInfo
	Actors      map[int]Actor
	NextActorNr int
	JoinEvents  map[string]JoinEvent
	LeaveEvents map[string]LeaveEvent
	LoadEvents  map[string]LoadEvent
	SaveEvents  map[string]SaveEvent
	// State 应用自定义的游戏状态，仅通过 Save 事件写入，内容对本系统不透明
	State string
	// Version 乐观并发令牌，每次成功写回递增一次
	Version int64
}

// NewRoomRecord 根据已通过校验的创建事件构造新的房间记录。
// 创建者固定占用 1 号席位，下一个待分配席位号为 2。
func NewRoomRecord(ev *WebhookEvent, createdAt time.Time) *RoomRecord {
	var opts RoomOptions
	if ev.CreateOptions != nil {
		opts = *ev.CreateOptions
	}
	return &RoomRecord{
		GameID:  ev.GameID,
		Env:     EnvInfo{AppID: ev.AppID, AppVersion: ev.AppVersion, Region: ev.Region},
		Options: opts,
		Creation: CreationInfo{
			Timestamp: createdAt,
			UserID:    ev.UserID,
			Type:      ev.Type,
		},
		Actors:      map[int]Actor{1: {UserID: ev.UserID}},
		NextActorNr: 2,
		JoinEvents:  map[string]JoinEvent{},
		LeaveEvents: map[string]LeaveEvent{},
		LoadEvents:  map[string]LoadEvent{},
		SaveEvents:  map[string]SaveEvent{},
	}
}

// RosterSize 返回当前花名册大小（含离线但保留席位的参与者）。
func (r *RoomRecord) RosterSize() int {
	return len(r.Actors)
}

// ActorByUserID 按用户 ID 查找席位号，未找到返回 0。
func (r *RoomRecord) ActorByUserID(userID string) int {
	for nr, actor := range r.Actors {
		if actor.UserID == userID {
			return nr
		}
	}
	return 0
}
