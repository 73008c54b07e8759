package dto

// ── 仪表盘 DTO ──

// UserDashboardResponse 普通用户仪表盘
type UserDashboardResponse struct {
	Registrations       map[string]int64  `json:"registrations"` // 按报名状态计数
	UpcomingSessions    []LabSessionBrief `json:"upcoming_sessions"`
	RecentEntries       []EntryResponse   `json:"recent_entries"`
	SubmittedCount      int               `json:"submitted_count"`
	GradedCount         int               `json:"graded_count"`
	AverageScore        float64           `json:"average_score"`
	UnreadNotifications int64             `json:"unread_notifications"`
}

// AdminDashboardResponse 管理员仪表盘
type AdminDashboardResponse struct {
	UsersByRole          map[string]int64  `json:"users_by_role"`
	SessionsByStatus     map[string]int64  `json:"sessions_by_status"`
	RegistrationsByState map[string]int64  `json:"registrations_by_status"`
	EntriesBySubmission  map[string]int64  `json:"entries_by_submission"`
	UpcomingSessions     []LabSessionBrief `json:"upcoming_sessions"`
	GeneratedAt          string            `json:"generated_at"`
}
