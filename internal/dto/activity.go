package dto

// ── 操作日志与通知 DTO ──

// ActivityLogListRequest 操作日志查询参数
type ActivityLogListRequest struct {
	PaginationRequest
	ActorID string `form:"actor_id" binding:"omitempty,uuid"`
	Action  string `form:"action"   binding:"omitempty,max=100"`
}

// ActivityLogResponse 操作日志响应
type ActivityLogResponse struct {
	ID        string  `json:"id"`
	ActorID   *string `json:"actor_id,omitempty"`
	Action    string  `json:"action"`
	Details   string  `json:"details"`
	IPAddress string  `json:"ip_address"`
	CreatedAt string  `json:"created_at"`
}

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	PaginationRequest
	UnreadOnly bool `form:"unread_only"`
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Type        string  `json:"type"`
	IsRead      bool    `json:"is_read"`
	RelatedType *string `json:"related_type,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	ReadAt      *string `json:"read_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// UnreadCountResponse 未读数量响应
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// MarkAllReadResponse 全部已读响应
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
