package model

import "time"

// ActivityLog 操作日志表 — 对应 activity_logs（只追加）
type ActivityLog struct {
	ActivityLogID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"activity_log_id"`
	ActorID       *string   `gorm:"type:uuid"                                      json:"actor_id,omitempty"`
	Action        string    `gorm:"type:varchar(100);not null"                     json:"action"`
	Details       string    `gorm:"type:text;not null;default:''"                  json:"details"`
	IPAddress     string    `gorm:"type:varchar(64);not null;default:''"           json:"ip_address"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ActivityLog) TableName() string { return "activity_logs" }
