package model

import (
	"time"

	"gorm.io/datatypes"
)

// 提交状态：not_submitted → submitted → graded
const (
	SubmissionNotSubmitted = "not_submitted"
	SubmissionSubmitted    = "submitted"
	SubmissionGraded       = "graded"
)

// Entry 签到记录表 — 对应 entries（每个用户每门实验课仅一条）
type Entry struct {
	EntryID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"   json:"entry_id"`
	UserID           string         `gorm:"type:uuid;not null"                               json:"user_id"`
	LabSessionID     string         `gorm:"type:uuid;not null"                               json:"lab_session_id"`
	RegistrationID   *string        `gorm:"type:uuid"                                        json:"registration_id,omitempty"`
	EntryTime        time.Time      `gorm:"not null"                                         json:"entry_time"`
	ExitTime         *time.Time     `json:"exit_time,omitempty"` // 提交后定格，不可再改
	Result           datatypes.JSON `gorm:"type:jsonb"                                       json:"result,omitempty"`
	Score            *float64       `json:"score,omitempty"`
	TeacherComment   string         `gorm:"type:text;not null;default:''"                    json:"teacher_comment"`
	SubmissionStatus string         `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"submission_status"`
	GradedBy         *string        `gorm:"type:uuid"                                        json:"graded_by,omitempty"`
	GradedAt         *time.Time     `json:"graded_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"               json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"               json:"updated_at"`

	// 关联
	User       *User       `gorm:"foreignKey:UserID;references:UserID"             json:"user,omitempty"`
	LabSession *LabSession `gorm:"foreignKey:LabSessionID;references:LabSessionID" json:"lab_session,omitempty"`
}

// TableName 指定表名
func (Entry) TableName() string { return "entries" }

// IsClosed 已提交结果（exit_time 已定格）
func (e *Entry) IsClosed() bool { return e.ExitTime != nil }
