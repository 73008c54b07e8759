package model

import "time"

// 报名状态：registered → attended | absent | cancelled
const (
	RegistrationRegistered = "registered"
	RegistrationAttended   = "attended"
	RegistrationAbsent     = "absent"
	RegistrationCancelled  = "cancelled"
)

// Registration 报名表 — 对应 registrations
type Registration struct {
	RegistrationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"registration_id"`
	UserID         string     `gorm:"type:uuid;not null"                             json:"user_id"`
	LabSessionID   string     `gorm:"type:uuid;not null"                             json:"lab_session_id"`
	Notes          string     `gorm:"type:text;not null;default:''"                  json:"notes"`
	Status         string     `gorm:"type:varchar(20);not null;default:'registered'" json:"status"`
	Priority       int        `gorm:"not null;default:0"                             json:"priority"` // 同时间报名的排序依据
	IsConfirmed    bool       `gorm:"not null;default:false"                         json:"is_confirmed"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	BaseModel

	// 关联
	User       *User       `gorm:"foreignKey:UserID;references:UserID"             json:"user,omitempty"`
	LabSession *LabSession `gorm:"foreignKey:LabSessionID;references:LabSessionID" json:"lab_session,omitempty"`
}

// TableName 指定表名
func (Registration) TableName() string { return "registrations" }

// IsActive 未取消的报名占用名额
func (r *Registration) IsActive() bool { return r.Status != RegistrationCancelled }
