package domain

import "time"

// AuditRecord 校验失败的审计记录，持久化到关系库，只写一次。
// RecordKey 由事件时间戳加随机后缀组成，避免同一纳秒内的键冲突。
type AuditRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RecordKey string `gorm:"uniqueIndex;size:191;not null"`
	AppID     string `gorm:"index;size:191"`
	Region    string `gorm:"size:64"`
	GameID    string `gorm:"index;size:191"`
	EventType string `gorm:"size:64"`
	UserID    string `gorm:"size:191"`
	// Reason 校验失败的结果码和描述
	ResultCode int
	Reason     string    `gorm:"type:text"`
	Payload    string    `gorm:"type:text"` // 原始事件信封 JSON
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}
