package dto

// ── 报名模块 DTO ──

// CreateRegistrationRequest 报名请求
type CreateRegistrationRequest struct {
	Notes string `json:"notes" binding:"omitempty,max=500"`
}

// UpdateRegistrationStatusRequest 管理员更新报名状态
// attended 只能由签到产生，这里只允许 registered 与 absent 互换
type UpdateRegistrationStatusRequest struct {
	Status      string `json:"status"       binding:"omitempty,oneof=registered absent"`
	IsConfirmed *bool  `json:"is_confirmed"`
}

// ── 响应 ──

// RegistrationResponse 报名响应
type RegistrationResponse struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	LabSessionID string           `json:"lab_session_id"`
	Notes        string           `json:"notes"`
	Status       string           `json:"status"`
	Priority     int              `json:"priority"`
	IsConfirmed  bool             `json:"is_confirmed"`
	ConfirmedAt  *string          `json:"confirmed_at,omitempty"`
	CreatedAt    string           `json:"created_at"`
	User         *UserBrief       `json:"user,omitempty"`
	LabSession   *LabSessionBrief `json:"lab_session,omitempty"`
}
