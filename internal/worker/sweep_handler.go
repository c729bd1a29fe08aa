package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"room-webhooks/internal/repository"
	"room-webhooks/internal/service"
	"room-webhooks/internal/tasks"
)

// defaultSweepLimit payload 未指定上限时单次处理的到期条目数。
const defaultSweepLimit = 200

// TTLSweepHandler 处理周期性的席位保留超时清扫任务。
// 取出到期的清扫条目，逐个交给状态机移除仍处于离线状态的席位；
// 席位已重连或房间已关闭的条目只清除登记。
type TTLSweepHandler struct {
	sweeps    repository.SweepScheduler
	lifecycle *service.LifecycleService
}

// NewTTLSweepHandler 创建 Handler 实例。
func NewTTLSweepHandler(sweeps repository.SweepScheduler, lifecycle *service.LifecycleService) *TTLSweepHandler {
	if sweeps == nil {
		panic("SweepScheduler cannot be nil for TTLSweepHandler")
	}
	if lifecycle == nil {
		panic("LifecycleService cannot be nil for TTLSweepHandler")
	}
	return &TTLSweepHandler{sweeps: sweeps, lifecycle: lifecycle}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *TTLSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.TTLSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Warn("TTL sweep: unparseable payload, using defaults")
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	due, err := h.sweeps.DueSweeps(ctx, time.Now(), limit)
	if err != nil {
		logCtx.WithError(err).Error("TTL sweep: failed to read due entries")
		return err
	}
	if len(due) == 0 {
		logCtx.Debug("TTL sweep: nothing due")
		return nil
	}
	logCtx.Infof("TTL sweep: processing %d due entries", len(due))

	failed := 0
	for _, entry := range due {
		entryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := h.lifecycle.ExpireActorTTL(entryCtx, entry)
		cancel()
		if err != nil {
			// 记录并继续，单个房间的失败不应让整批重试
			failed++
			logCtx.WithError(err).WithFields(logrus.Fields{
				"game_id":  entry.GameID,
				"actor_nr": entry.ActorNr,
			}).Error("TTL sweep: failed to expire actor")
			continue
		}
		if err := h.sweeps.ClearSweep(ctx, entry); err != nil {
			logCtx.WithError(err).WithField("game_id", entry.GameID).Warn("TTL sweep: failed to clear processed entry")
		}
	}

	if failed > 0 {
		logCtx.Warnf("TTL sweep completed with %d of %d entries failed", failed, len(due))
		return nil
	}
	logCtx.Info("TTL sweep completed")
	return nil
}
