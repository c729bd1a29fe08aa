package tasks

import "encoding/json"

// 定义任务类型常量
const (
	// TypeTTLSweep 周期检查保留超时的离线席位并移除
	TypeTTLSweep = "room:ttl_sweep"
	// TypeAuditCleanup 周期清理过期的审计记录
	TypeAuditCleanup = "audit:cleanup"
)

// TTLSweepPayload TTL 清扫任务的数据结构。
// Limit 单次任务处理的到期条目上限，防止单次执行时间不可控。
type TTLSweepPayload struct {
	Limit int64 `json:"limit"`
}

// NewTTLSweepTask 创建 TTL 清扫任务的 payload。
func NewTTLSweepTask(limit int64) ([]byte, error) {
	return json.Marshal(TTLSweepPayload{Limit: limit})
}

// AuditCleanupPayload 审计清理任务的数据结构。
type AuditCleanupPayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuditCleanupTask 创建审计清理任务的 payload。
func NewAuditCleanupTask(retentionDays int) ([]byte, error) {
	return json.Marshal(AuditCleanupPayload{RetentionDays: retentionDays})
}
