package dto

// ── 系统设置模块 DTO ──

// UpdateSettingRequest 更新单项设置；value 按该项的类型校验
type UpdateSettingRequest struct {
	Value interface{} `json:"value" binding:"required"`
}

// SettingResponse 设置项响应；value 已按 value_type 转为对应 JSON 类型
type SettingResponse struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	ValueType   string      `json:"value_type"`
	Description string      `json:"description"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
}
