package handler

import "github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	LabSession   *LabSessionHandler
	Registration *RegistrationHandler
	Attendance   *AttendanceHandler
	Setting      *SettingHandler
	Activity     *ActivityHandler
	Notification *NotificationHandler
	Dashboard    *DashboardHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, cookie CookieConfig) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, cookie),
		User:         NewUserHandler(svc.User),
		LabSession:   NewLabSessionHandler(svc.LabSession),
		Registration: NewRegistrationHandler(svc.Registration),
		Attendance:   NewAttendanceHandler(svc.Attendance),
		Setting:      NewSettingHandler(svc.Setting),
		Activity:     NewActivityHandler(svc.Activity),
		Notification: NewNotificationHandler(svc.Notification),
		Dashboard:    NewDashboardHandler(svc.Dashboard),
		Export:       NewExportHandler(svc.Export, svc.Calendar),
	}
}
