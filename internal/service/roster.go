package service

import (
	"room-webhooks/internal/domain"
)

// 花名册转移是纯函数：输入花名册不被修改，输出是新的映射，
// 便于在不接触存储的情况下单测所有分支。

// JoinKind 加入转移的结果类别。
type JoinKind int

const (
	// JoinNew 分配了新席位
	JoinNew JoinKind = iota
	// JoinRejoin 重新激活了保留中的席位
	JoinRejoin
)

// RosterJoin 加入转移的结果。
type RosterJoin struct {
	Actors      map[int]domain.Actor
	NextActorNr int
	Kind        JoinKind
}

// LeaveKind 离开转移的结果类别。
type LeaveKind int

const (
	// LeaveMarkedInactive 席位标记离线并保留，等待重连
	LeaveMarkedInactive LeaveKind = iota
	// LeaveRemoved 席位被彻底移除
	LeaveRemoved
)

// RosterLeave 离开转移的结果。
type RosterLeave struct {
	Actors    map[int]domain.Actor
	Kind      LeaveKind
	CanRejoin bool
}

// ApplyJoin 计算一次加入事件对花名册的转移。
// 三种情形:
//   - actorNr == nextActorNr: 新加入，受 MaxPlayers 容量约束；
//   - actorNr < nextActorNr 且房间配置了 PlayerTTL: 重连，席位必须
//     存在且处于离线状态；严格校验开启时 userId 必须与原占用者一致，
//     否则允许更新席位的 userId；
//   - 其余取值: 乱序加入，拒绝。
//
// NextActorNr 只在新加入时递增，重连不分配新席位号。
func ApplyJoin(actors map[int]domain.Actor, nextActorNr int, opts domain.RoomOptions, actorNr int, userID string) (RosterJoin, error) {
	switch {
	case actorNr == nextActorNr:
		if opts.MaxPlayers > 0 && len(actors) >= opts.MaxPlayers {
			return RosterJoin{}, NewSemanticMismatch("room is full: %d of %d actor slots occupied", len(actors), opts.MaxPlayers)
		}
		next := copyActors(actors)
		next[actorNr] = domain.Actor{UserID: userID}
		return RosterJoin{Actors: next, NextActorNr: nextActorNr + 1, Kind: JoinNew}, nil

	case opts.PlayerTTLMs != 0 && actorNr > 0 && actorNr < nextActorNr:
		current, ok := actors[actorNr]
		if !ok {
			// 席位号曾被分配但已被移除；席位号永不复用，重连失败
			return RosterJoin{}, NewSemanticMismatch("actor %d has left and its slot was released", actorNr)
		}
		if !current.Inactive {
			return RosterJoin{}, NewSemanticMismatch("actor %d is still active, duplicate join", actorNr)
		}
		if opts.CheckUserOnJoin && current.UserID != userID {
			return RosterJoin{}, NewSemanticMismatch("actor %d belongs to a different user, rejoin denied", actorNr)
		}
		next := copyActors(actors)
		next[actorNr] = domain.Actor{UserID: userID, Properties: current.Properties}
		return RosterJoin{Actors: next, NextActorNr: nextActorNr, Kind: JoinRejoin}, nil

	default:
		return RosterJoin{}, NewSemanticMismatch("actor number %d is out of sequence, expected %d", actorNr, nextActorNr)
	}
}

// ApplyLeave 计算一次离开事件对花名册的转移。
// 席位必须存在且由离开的用户占用；除席位保留超时外，席位必须处于
// 活跃状态（同一席位不会离开两次）。recoverable 为真时席位标记离线
// 保留，否则彻底移除。
func ApplyLeave(actors map[int]domain.Actor, actorNr int, userID string, recoverable bool, reason string) (RosterLeave, error) {
	current, ok := actors[actorNr]
	if !ok {
		return RosterLeave{}, NewSemanticMismatch("actor %d is not in the roster", actorNr)
	}
	if current.UserID != userID {
		return RosterLeave{}, NewSemanticMismatch("actor %d is occupied by a different user", actorNr)
	}
	if current.Inactive && reason != domain.ReasonPlayerTTLTimedOut {
		return RosterLeave{}, NewSemanticMismatch("actor %d is already inactive", actorNr)
	}

	next := copyActors(actors)
	if recoverable {
		current.Inactive = true
		next[actorNr] = current
		return RosterLeave{Actors: next, Kind: LeaveMarkedInactive, CanRejoin: true}, nil
	}
	delete(next, actorNr)
	return RosterLeave{Actors: next, Kind: LeaveRemoved}, nil
}

func copyActors(actors map[int]domain.Actor) map[int]domain.Actor {
	next := make(map[int]domain.Actor, len(actors)+1)
	for nr, actor := range actors {
		next[nr] = actor
	}
	return next
}
