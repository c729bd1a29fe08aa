package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/repository"
)

// ArgsValidator 按事件类型校验事件信封。
// 每个校验失败在返回前都会写入一条审计记录（旁路，不属于房间记录）。
type ArgsValidator struct {
	audit repository.AuditRepository
}

// NewArgsValidator 创建 ArgsValidator 实例。
func NewArgsValidator(audit repository.AuditRepository) *ArgsValidator {
	if audit == nil {
		panic("AuditRepository cannot be nil for ArgsValidator")
	}
	return &ArgsValidator{audit: audit}
}

// ValidateEvent 校验一个房间事件信封。
// callerID 是已认证调用方的用户 ID，事件中的操作者必须与之一致。
// 返回 nil 或携带结果码的 *Error（第一个缺失/非法字段）。
func (v *ArgsValidator) ValidateEvent(ctx context.Context, callerID string, ev *domain.WebhookEvent) error {
	err := v.checkEvent(callerID, ev)
	if err != nil {
		v.recordFailure(ctx, ev, err)
	}
	return err
}

// checkEvent 实现具体校验规则，与审计旁路分离以便测试。
func (v *ArgsValidator) checkEvent(callerID string, ev *domain.WebhookEvent) error {
	// 所有类型共有的必需字段
	if ev.AppID == "" {
		return NewMissingArgument("AppId")
	}
	if ev.AppVersion == "" {
		return NewMissingArgument("AppVersion")
	}
	if ev.Region == "" {
		return NewMissingArgument("Region")
	}
	if ev.GameID == "" {
		return NewMissingArgument("GameId")
	}
	if ev.Type == "" {
		return NewMissingArgument("Type")
	}

	if ev.Type == domain.EventClose || ev.Type == domain.EventSave {
		// Close/Save 要求 actor 数量而非单个 actor
		if ev.ActorCount == nil {
			return NewMissingArgument("ActorCount")
		}
		if len(ev.ActorList) > 0 && len(ev.ActorList) != *ev.ActorCount {
			return NewSemanticMismatch("ActorList length %d does not match ActorCount %d", len(ev.ActorList), *ev.ActorCount)
		}
	} else {
		if ev.ActorNr <= 0 {
			return NewMissingArgument("ActorNr")
		}
		if ev.UserID == "" {
			return NewMissingArgument("UserId")
		}
		if ev.UserID != callerID {
			return NewAuthMismatch(ev.UserID, callerID)
		}
		if ev.DisplayName() == "" {
			return NewMissingArgument("Username/Nickname")
		}
	}

	switch ev.Type {
	case domain.EventLoad:
		if ev.CreateIfNotExists == nil {
			return NewMissingArgument("CreateIfNotExists")
		}

	case domain.EventCreate:
		if ev.CreateOptions == nil {
			return NewMissingArgument("CreateOptions")
		}
		if ev.ActorNr != 1 {
			return NewSemanticMismatch("room creator must be actor 1, got %d", ev.ActorNr)
		}

	case domain.EventJoin:
		// 共有字段之外无额外要求

	case domain.EventPlayer, domain.EventGame:
		if ev.Properties == nil {
			return NewMissingArgument("Properties")
		}
		if ev.Username != "" && ev.State == "" {
			return NewMissingArgument("State")
		}

	case domain.EventEvent:
		if ev.Data == nil {
			return NewMissingArgument("Data")
		}
		if ev.Username != "" && ev.State == "" {
			return NewMissingArgument("State")
		}

	case domain.EventSave:
		if ev.State == "" {
			return NewMissingArgument("State")
		}
		if *ev.ActorCount <= 0 {
			return NewSemanticMismatch("Save requires a positive ActorCount, got %d", *ev.ActorCount)
		}

	case domain.EventClose:
		if *ev.ActorCount != 0 {
			return NewSemanticMismatch("Close requires ActorCount 0, got %d", *ev.ActorCount)
		}

	default:
		if !domain.IsLeaveType(ev.Type) {
			return NewSemanticMismatch("unknown event type '%s'", ev.Type)
		}
		if domain.IsInvalidLeaveType(ev.Type) {
			return NewSemanticMismatch("leave type '%s' cannot be delivered by the relay", ev.Type)
		}
		if ev.Inactive == nil {
			return NewMissingArgument("Inactive")
		}
		if ev.Reason == "" {
			return NewMissingArgument("Reason")
		}
		if domain.LeaveReasons[ev.Type] != ev.Reason {
			return NewSemanticMismatch("reason code '%s' does not match leave type '%s'", ev.Reason, ev.Type)
		}
	}

	return nil
}

// ValidateGameListQuery 校验 GetGameList 查询参数。
func (v *ArgsValidator) ValidateGameListQuery(appID, appVersion, region, userID string) error {
	switch {
	case appID == "":
		return NewMissingArgument("AppId")
	case appVersion == "":
		return NewMissingArgument("AppVersion")
	case region == "":
		return NewMissingArgument("Region")
	case userID == "":
		return NewMissingArgument("UserId")
	}
	return nil
}

// recordFailure 把校验失败写入审计记录。
// 审计写入失败只记日志，不改变返回给调用方的校验结果。
func (v *ArgsValidator) recordFailure(ctx context.Context, ev *domain.WebhookEvent, vErr error) {
	code, message := CollapseError(vErr)

	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).Warn("Validator: failed to marshal event for audit record")
	}
	rec := &domain.AuditRecord{
		// 时间戳 + 随机后缀，避免同一时刻多条失败的键冲突
		RecordKey:  fmt.Sprintf("%d_%s", time.Now().UnixNano(), uuid.NewString()[:8]),
		AppID:      ev.AppID,
		Region:     ev.Region,
		GameID:     ev.GameID,
		EventType:  ev.Type,
		UserID:     ev.UserID,
		ResultCode: int(code),
		Reason:     message,
		Payload:    string(payload),
	}

	if err := v.audit.Save(ctx, rec); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"game_id":    ev.GameID,
			"event_type": ev.Type,
		}).Error("Validator: failed to persist audit record")
	}
}
