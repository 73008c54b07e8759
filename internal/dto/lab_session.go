package dto

import "time"

// ── 实验课模块 DTO ──

// CreateLabSessionRequest 创建实验课请求
// date 为空时取 start_time 在业务时区下的日期；verification_code 为空时自动生成
type CreateLabSessionRequest struct {
	Title                 string    `json:"title"                   binding:"required,min=2,max=200"`
	Description           string    `json:"description"             binding:"omitempty,max=5000"`
	Date                  string    `json:"date"                    binding:"omitempty,datetime=2006-01-02"`
	StartTime             time.Time `json:"start_time"              binding:"required"`
	EndTime               time.Time `json:"end_time"                binding:"required"`
	Location              string    `json:"location"                binding:"omitempty,max=200"`
	MaxParticipants       int       `json:"max_participants"        binding:"required,min=1,max=1000"`
	IsActive              *bool     `json:"is_active"`
	VerificationCode      string    `json:"verification_code"       binding:"omitempty,vcode"`
	AllowLateRegistration bool      `json:"allow_late_registration"`
	AutoApprove           *bool     `json:"auto_approve"`
	Tags                  []string  `json:"tags"                    binding:"omitempty,max=20,dive,min=1,max=50"`
	Difficulty            *string   `json:"difficulty"              binding:"omitempty,oneof=beginner intermediate advanced"`
	Equipment             []string  `json:"equipment"               binding:"omitempty,max=50,dive,min=1,max=100"`
	MaxScore              *float64  `json:"max_score"               binding:"omitempty,gt=0"`
	TimeLimitMinutes      *int      `json:"time_limit_minutes"      binding:"omitempty,min=1"`
}

// UpdateLabSessionRequest 更新实验课请求（携带 version 做乐观锁）
type UpdateLabSessionRequest struct {
	Version               int        `json:"version"                 binding:"required,min=1"`
	Title                 *string    `json:"title"                   binding:"omitempty,min=2,max=200"`
	Description           *string    `json:"description"             binding:"omitempty,max=5000"`
	Date                  *string    `json:"date"                    binding:"omitempty,datetime=2006-01-02"`
	StartTime             *time.Time `json:"start_time"`
	EndTime               *time.Time `json:"end_time"`
	Location              *string    `json:"location"                binding:"omitempty,max=200"`
	MaxParticipants       *int       `json:"max_participants"        binding:"omitempty,min=1,max=1000"`
	IsActive              *bool      `json:"is_active"`
	AllowLateRegistration *bool      `json:"allow_late_registration"`
	AutoApprove           *bool      `json:"auto_approve"`
	Tags                  []string   `json:"tags"                    binding:"omitempty,max=20,dive,min=1,max=50"`
	Difficulty            *string    `json:"difficulty"              binding:"omitempty,oneof=beginner intermediate advanced"`
	Equipment             []string   `json:"equipment"               binding:"omitempty,max=50,dive,min=1,max=100"`
	MaxScore              *float64   `json:"max_score"               binding:"omitempty,gt=0"`
	TimeLimitMinutes      *int       `json:"time_limit_minutes"      binding:"omitempty,min=1"`
}

// LabSessionListRequest 实验课列表查询参数
type LabSessionListRequest struct {
	PaginationRequest
	Status  string `form:"status"  binding:"omitempty,oneof=scheduled ongoing completed cancelled"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
	From    string `form:"from"    binding:"omitempty,datetime=2006-01-02"`
	To      string `form:"to"      binding:"omitempty,datetime=2006-01-02"`
}

// RoomPlanRequest 教室排布查询参数
type RoomPlanRequest struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to"   binding:"omitempty,datetime=2006-01-02"`
}

// RegenerateCodeRequest 重置签到码请求，code 为空时随机生成
type RegenerateCodeRequest struct {
	Code string `json:"code" binding:"omitempty,vcode"`
}

// ── 响应 ──

// LabSessionResponse 实验课响应
type LabSessionResponse struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	Date                  string   `json:"date"`
	StartTime             string   `json:"start_time"`
	EndTime               string   `json:"end_time"`
	Location              string   `json:"location"`
	MaxParticipants       int      `json:"max_participants"`
	RegisteredCount       *int64   `json:"registered_count,omitempty"`
	IsActive              bool     `json:"is_active"`
	Status                string   `json:"status"`
	AllowLateRegistration bool     `json:"allow_late_registration"`
	AutoApprove           bool     `json:"auto_approve"`
	Tags                  []string `json:"tags"`
	Difficulty            *string  `json:"difficulty,omitempty"`
	Equipment             []string `json:"equipment"`
	MaxScore              *float64 `json:"max_score,omitempty"`
	TimeLimitMinutes      *int     `json:"time_limit_minutes,omitempty"`
	VerificationCode      string   `json:"verification_code,omitempty"` // 仅管理员可见
	Version               int      `json:"version"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
}

// LabSessionBrief 实验课简要信息
type LabSessionBrief struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location"`
	Status    string `json:"status"`
}

// VerificationCodeResponse 签到码响应
type VerificationCodeResponse struct {
	LabSessionID     string `json:"lab_session_id"`
	VerificationCode string `json:"verification_code"`
}

// SessionStatsResponse 实验课统计响应
type SessionStatsResponse struct {
	LabSessionID   string  `json:"lab_session_id"`
	Capacity       int     `json:"capacity"`
	Registered     int     `json:"registered"`
	Attended       int     `json:"attended"`
	Absent         int     `json:"absent"`
	Cancelled      int     `json:"cancelled"`
	Available      int     `json:"available"`
	Submitted      int     `json:"submitted"`
	Graded         int     `json:"graded"`
	CompletionRate float64 `json:"completion_rate"`
	AverageScore   float64 `json:"average_score"`
}

// RoomAssignmentResponse 教室排布响应
type RoomAssignmentResponse struct {
	LabSessionID string `json:"lab_session_id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Room         string `json:"room"`
}
