package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/jwt"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/redis"
)

// Cache 看板缓存（由 *redis.Client 实现）
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TokenBlacklist Token 黑名单（由 *redis.Client 实现）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	LabSession   LabSessionService
	Registration RegistrationService
	Attendance   AttendanceService
	Setting      SettingService
	Activity     ActivityService
	Notification NotificationService
	Dashboard    DashboardService
	Export       ExportService
	Calendar     CalendarService
}

// NewService 创建 Service 聚合
// rdb 为 nil 时缓存与 Token 黑名单降级为不可用
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	var cache Cache
	var blacklist TokenBlacklist
	if rdb != nil {
		cache = rdb
		blacklist = rdb
	}

	activity := NewActivityService(repo, logger)
	settings := NewSettingService(cfg, repo, activity, logger)
	notifier := NewNotificationService(repo, logger)
	dashboard := NewDashboardService(repo, settings, cache, logger)

	return &Service{
		Auth:         NewAuthService(repo, jwtMgr, blacklist, activity, logger),
		User:         NewUserService(repo, activity, notifier, logger),
		LabSession:   NewLabSessionService(cfg, repo, settings, activity, notifier, dashboard, logger),
		Registration: NewRegistrationService(repo, settings, activity, notifier, dashboard, logger),
		Attendance:   NewAttendanceService(repo, settings, activity, notifier, dashboard, logger),
		Setting:      settings,
		Activity:     activity,
		Notification: notifier,
		Dashboard:    dashboard,
		Export:       NewExportService(repo, settings, logger),
		Calendar:     NewCalendarService(cfg, repo, settings, logger),
	}
}

// ── 内部辅助方法 ──

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// storageError 包装存储层错误；业务错误原样返回
func storageError(err error) error {
	if apperr.As(err) != nil {
		return err
	}
	return apperr.Infrastructure(err)
}

// rollback 回滚事务；tx 为 nil（未绑定数据库）时忽略
func rollback(tx *gorm.DB) {
	if tx != nil {
		tx.Rollback()
	}
}

// commit 提交事务；tx 为 nil 时视为成功
func commit(tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.Commit().Error
}
