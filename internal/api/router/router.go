package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/api/handler"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/api/middleware"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/jwt"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单与限流降级关闭
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		blacklist middleware.Blacklist
		limiter   middleware.Limiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}
	rateLimit := middleware.RateLimit(limiter, cfg.Server.RateLimit, cfg.Server.RateWindowDuration(), logger)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(int64(cfg.Server.BodyLimitMB) << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "ok"
			if err := rdb.Ping(c.Request.Context()); err != nil {
				redisStatus = "unavailable"
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": redisStatus})
	})

	admin := middleware.RequireLevel(model.RoleAdmin)
	sysAdmin := middleware.RequireLevel(model.RoleSystemAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证，按 IP 限流）
		auth := v1.Group("/auth")
		auth.Use(rateLimit)
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/register", h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由（按用户限流）
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist, logger), rateLimit)
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户模块
			users := authorized.Group("/users", admin)
			{
				users.GET("", h.User.ListUsers)
				users.GET("/:id", h.User.GetUser)
				users.PUT("/:id/role", h.User.AssignRole)
				users.PUT("/:id/active", h.User.SetActive)
				users.DELETE("/:id", h.User.DeleteUser)
			}

			// 实验课模块
			sessions := authorized.Group("/lab-sessions")
			{
				sessions.GET("", h.LabSession.List)
				sessions.GET("/room-plan", admin, h.LabSession.RoomPlan)
				sessions.GET("/calendar.ics", h.Export.Calendar)
				sessions.GET("/:id", h.LabSession.Get)
				sessions.POST("", admin, h.LabSession.Create)
				sessions.PUT("/:id", admin, h.LabSession.Update)
				sessions.DELETE("/:id", admin, h.LabSession.Delete)
				sessions.POST("/:id/start", admin, h.LabSession.Start)
				sessions.POST("/:id/complete", admin, h.LabSession.Complete)
				sessions.POST("/:id/cancel", admin, h.LabSession.Cancel)
				sessions.POST("/:id/verification-code", admin, h.LabSession.RegenerateCode)
				sessions.GET("/:id/stats", admin, h.LabSession.Stats)
				sessions.GET("/:id/export", admin, h.Export.ExportRoster)

				sessions.POST("/:id/register", h.Registration.Register)
				sessions.GET("/:id/registrations", admin, h.Registration.ListBySession)

				sessions.POST("/:id/check-in", h.Attendance.CheckIn)
				sessions.GET("/:id/entries", admin, h.Attendance.ListBySession)
			}

			// 报名模块
			registrations := authorized.Group("/registrations")
			{
				registrations.GET("/me", h.Registration.ListMine)
				registrations.DELETE("/:id", h.Registration.Cancel)
				registrations.PUT("/:id/status", admin, h.Registration.UpdateStatus)
			}

			// 实验记录模块
			entries := authorized.Group("/entries")
			{
				entries.GET("/me", h.Attendance.ListMine)
				entries.POST("/:id/submit", h.Attendance.Submit)
				entries.PUT("/:id/grade", admin, h.Attendance.Grade)
			}

			// 系统设置
			settings := authorized.Group("/settings")
			{
				settings.GET("", admin, h.Setting.List)
				settings.PUT("/:key", sysAdmin, h.Setting.Update)
				settings.POST("/reset", sysAdmin, h.Setting.Reset)
			}

			// 操作日志
			authorized.GET("/activity-logs", admin, h.Activity.List)

			// 站内通知
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
			}

			// 看板
			dashboard := authorized.Group("/dashboard")
			{
				dashboard.GET("/user", h.Dashboard.User)
				dashboard.GET("/admin", admin, h.Dashboard.Admin)
			}
		}
	}

	return r
}
