package model

import (
	"time"

	"gorm.io/datatypes"
)

// 实验课状态：scheduled → ongoing → completed，scheduled|ongoing → cancelled
const (
	SessionScheduled = "scheduled"
	SessionOngoing   = "ongoing"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// 难度
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// LabSession 实验课表 — 对应 lab_sessions
type LabSession struct {
	LabSessionID          string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"lab_session_id"`
	Title                 string                      `gorm:"type:varchar(200);not null"                     json:"title"`
	Description           string                      `gorm:"type:text;not null;default:''"                  json:"description"`
	Date                  time.Time                   `gorm:"column:session_date;type:date;not null"         json:"date"`
	StartTime             time.Time                   `gorm:"not null"                                       json:"start_time"`
	EndTime               time.Time                   `gorm:"not null"                                       json:"end_time"`
	Location              string                      `gorm:"type:varchar(200);not null;default:''"          json:"location"`
	MaxParticipants       int                         `gorm:"not null"                                       json:"max_participants"`
	IsActive              bool                        `gorm:"not null;default:true"                          json:"is_active"`
	VerificationCode      string                      `gorm:"type:char(6);not null"                          json:"-"`
	Status                string                      `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"`
	AllowLateRegistration bool                        `gorm:"not null;default:false"                         json:"allow_late_registration"`
	AutoApprove           bool                        `gorm:"not null;default:true"                          json:"auto_approve"`
	Tags                  datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"               json:"tags"`
	Difficulty            *string                     `gorm:"type:varchar(20)"                               json:"difficulty,omitempty"`
	Equipment             datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"               json:"equipment"`
	MaxScore              *float64                    `json:"max_score,omitempty"`
	TimeLimitMinutes      *int                        `json:"time_limit_minutes,omitempty"`
	Version               int                         `gorm:"not null;default:1"                             json:"version"`
	BaseModel
}

// TableName 指定表名
func (LabSession) TableName() string { return "lab_sessions" }
