package repository

import (
	"context"
	"time"
)

// SweepEntry 一条待清扫的席位保留超时记录。
type SweepEntry struct {
	AppID   string
	GameID  string
	ActorNr int
}

// SweepScheduler 定义了离线席位 TTL 到期清扫的调度操作。
// 席位被标记离线且房间配置了 PlayerTTL 时登记一条 deadline，
// 周期任务取出到期条目并移除仍处于离线状态的席位。
type SweepScheduler interface {
	// ScheduleSweep 登记（或推后）一个席位的清扫时间点。
	ScheduleSweep(ctx context.Context, entry SweepEntry, due time.Time) error

	// DueSweeps 返回截至 now 已到期的清扫条目，最多 limit 条。
	DueSweeps(ctx context.Context, now time.Time, limit int64) ([]SweepEntry, error)

	// ClearSweep 移除一条清扫登记（席位重连或已处理完毕时）。
	ClearSweep(ctx context.Context, entry SweepEntry) error
}
