package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
)

const (
	dashboardAdminKey      = "dashboard:admin"
	dashboardUserKeyPrefix = "dashboard:user:"
	dashboardUpcomingLimit = 5
	dashboardRecentLimit   = 5
	dashboardScanLimit     = 50
	adminUpcomingWindow    = 7 * 24 * time.Hour
	adminUpcomingLimit     = 10
)

// DashboardService 仪表盘业务接口
//
// 统计结果按 dashboard_cache_seconds 缓存在 Redis 中，写操作后显式失效。
// Redis 不可用时直接查库，缓存从不作为数据来源。
type DashboardService interface {
	User(ctx context.Context, userID string) (*dto.UserDashboardResponse, error)
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, error)
	// Invalidate 失效管理员看板以及给定用户的看板
	Invalidate(ctx context.Context, userIDs ...string)
	// InvalidateAll 失效全部看板缓存
	InvalidateAll(ctx context.Context)
}

type dashboardService struct {
	repo     *repository.Repository
	settings SettingService
	cache    Cache
	logger   *zap.Logger
}

// NewDashboardService 创建 DashboardService 实例；cache 可为 nil
func NewDashboardService(repo *repository.Repository, settings SettingService, cache Cache, logger *zap.Logger) DashboardService {
	return &dashboardService{repo: repo, settings: settings, cache: cache, logger: logger}
}

// ────────────────────── User ──────────────────────

func (s *dashboardService) User(ctx context.Context, userID string) (*dto.UserDashboardResponse, error) {
	key := dashboardUserKeyPrefix + userID
	var cached dto.UserDashboardResponse
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	counts, err := s.repo.Registration.CountByStatus(ctx, userID)
	if err != nil {
		s.logger.Error("统计用户报名失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storageError(err)
	}

	regs, _, err := s.repo.Registration.ListByUser(ctx, userID, 0, dashboardScanLimit)
	if err != nil {
		s.logger.Error("查询用户报名失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storageError(err)
	}

	entries, _, err := s.repo.Entry.ListByUser(ctx, userID, 0, -1)
	if err != nil {
		s.logger.Error("查询用户签到记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storageError(err)
	}

	unread, err := s.repo.Notification.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("查询未读通知数失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storageError(err)
	}

	now := time.Now()
	var upcoming []model.LabSession
	for _, r := range regs {
		if !r.IsActive() || r.LabSession == nil {
			continue
		}
		ls := r.LabSession
		if ls.EndTime.After(now) && (ls.Status == model.SessionScheduled || ls.Status == model.SessionOngoing) {
			upcoming = append(upcoming, *ls)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartTime.Before(upcoming[j].StartTime) })
	if len(upcoming) > dashboardUpcomingLimit {
		upcoming = upcoming[:dashboardUpcomingLimit]
	}

	resp := &dto.UserDashboardResponse{
		Registrations:       counts,
		UpcomingSessions:    make([]dto.LabSessionBrief, 0, len(upcoming)),
		RecentEntries:       make([]dto.EntryResponse, 0, dashboardRecentLimit),
		AverageScore:        lifecycle.AverageScore(entries),
		UnreadNotifications: unread,
	}
	for i := range upcoming {
		resp.UpcomingSessions = append(resp.UpcomingSessions, toLabSessionBrief(&upcoming[i]))
	}
	for i := range entries {
		switch entries[i].SubmissionStatus {
		case model.SubmissionSubmitted:
			resp.SubmittedCount++
		case model.SubmissionGraded:
			resp.GradedCount++
		}
		if i < dashboardRecentLimit {
			resp.RecentEntries = append(resp.RecentEntries, toEntryResponse(&entries[i]))
		}
	}

	s.toCache(ctx, key, resp)
	return resp, nil
}

// ────────────────────── Admin ──────────────────────

func (s *dashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	var cached dto.AdminDashboardResponse
	if s.fromCache(ctx, dashboardAdminKey, &cached) {
		return &cached, nil
	}

	users, err := s.repo.User.CountByRole(ctx)
	if err != nil {
		s.logger.Error("统计用户失败", zap.Error(err))
		return nil, storageError(err)
	}
	sessions, err := s.repo.LabSession.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("统计实验课失败", zap.Error(err))
		return nil, storageError(err)
	}
	regs, err := s.repo.Registration.CountByStatus(ctx, "")
	if err != nil {
		s.logger.Error("统计报名失败", zap.Error(err))
		return nil, storageError(err)
	}
	entries, err := s.repo.Entry.CountBySubmissionStatus(ctx)
	if err != nil {
		s.logger.Error("统计签到记录失败", zap.Error(err))
		return nil, storageError(err)
	}

	now := time.Now()
	until := now.Add(adminUpcomingWindow)
	upcoming, err := s.repo.LabSession.ListInRange(ctx, &now, &until)
	if err != nil {
		s.logger.Error("查询近期实验课失败", zap.Error(err))
		return nil, storageError(err)
	}

	resp := &dto.AdminDashboardResponse{
		UsersByRole:          users,
		SessionsByStatus:     sessions,
		RegistrationsByState: regs,
		EntriesBySubmission:  entries,
		UpcomingSessions:     make([]dto.LabSessionBrief, 0, adminUpcomingLimit),
		GeneratedAt:          formatTime(now),
	}
	for i := range upcoming {
		if len(resp.UpcomingSessions) == adminUpcomingLimit {
			break
		}
		if upcoming[i].Status == model.SessionScheduled && upcoming[i].IsActive {
			resp.UpcomingSessions = append(resp.UpcomingSessions, toLabSessionBrief(&upcoming[i]))
		}
	}

	s.toCache(ctx, dashboardAdminKey, resp)
	return resp, nil
}

// ────────────────────── Invalidate ──────────────────────

func (s *dashboardService) Invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(userIDs)+1)
	keys = append(keys, dashboardAdminKey)
	for _, id := range userIDs {
		keys = append(keys, dashboardUserKeyPrefix+id)
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		s.logger.Warn("清除看板缓存失败", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *dashboardService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(context.WithoutCancel(ctx), "dashboard:"); err != nil {
		s.logger.Warn("清除看板缓存失败", zap.Error(err))
	}
}

// ── 内部辅助方法 ──

func (s *dashboardService) ttl(ctx context.Context) time.Duration {
	return time.Duration(s.settings.Int(ctx, SettingDashboardCacheSecond)) * time.Second
}

func (s *dashboardService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.logger.Warn("读取看板缓存失败", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *dashboardService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	ttl := s.ttl(ctx)
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, ttl); err != nil {
		s.logger.Warn("写入看板缓存失败", zap.String("key", key), zap.Error(err))
	}
}
