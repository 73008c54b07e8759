package dto

import "encoding/json"

// ── 签到与成绩模块 DTO ──

// CheckInRequest 签到请求
type CheckInRequest struct {
	VerificationCode string `json:"verification_code" binding:"required"`
}

// SubmitResultRequest 提交实验结果请求
type SubmitResultRequest struct {
	Result json.RawMessage `json:"result" binding:"required"`
}

// GradeRequest 评分请求
type GradeRequest struct {
	Score   *float64 `json:"score"   binding:"required"`
	Comment string   `json:"comment" binding:"omitempty,max=2000"`
}

// ── 响应 ──

// EntryResponse 签到记录响应
type EntryResponse struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	LabSessionID     string           `json:"lab_session_id"`
	RegistrationID   *string          `json:"registration_id,omitempty"`
	EntryTime        string           `json:"entry_time"`
	ExitTime         *string          `json:"exit_time,omitempty"`
	Result           json.RawMessage  `json:"result,omitempty"`
	Score            *float64         `json:"score,omitempty"`
	TeacherComment   string           `json:"teacher_comment"`
	SubmissionStatus string           `json:"submission_status"`
	GradedBy         *string          `json:"graded_by,omitempty"`
	GradedAt         *string          `json:"graded_at,omitempty"`
	User             *UserBrief       `json:"user,omitempty"`
	LabSession       *LabSessionBrief `json:"lab_session,omitempty"`
}

// CheckInResponse 签到响应；created 为 false 表示返回的是已有签到记录
type CheckInResponse struct {
	Entry   EntryResponse `json:"entry"`
	Created bool          `json:"created"`
}
