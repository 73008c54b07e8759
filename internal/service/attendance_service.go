package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// AttendanceService 签到、结果提交与评分业务接口
type AttendanceService interface {
	// CheckIn 幂等签到；重复签到返回已有记录且 Created=false
	CheckIn(ctx context.Context, userID, sessionID string, req *dto.CheckInRequest, ip string) (*dto.CheckInResponse, error)
	Submit(ctx context.Context, userID, entryID string, req *dto.SubmitResultRequest, ip string) (*dto.EntryResponse, error)
	Grade(ctx context.Context, graderID, entryID string, req *dto.GradeRequest, ip string) (*dto.EntryResponse, error)
	ListMine(ctx context.Context, userID string, req *dto.PaginationRequest) ([]dto.EntryResponse, int64, error)
	ListBySession(ctx context.Context, sessionID string) ([]dto.EntryResponse, error)
}

type attendanceService struct {
	repo      *repository.Repository
	settings  SettingService
	activity  ActivityService
	notifier  NotificationService
	dashboard DashboardService
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	repo *repository.Repository,
	settings SettingService,
	activity ActivityService,
	notifier NotificationService,
	dashboard DashboardService,
	logger *zap.Logger,
) AttendanceService {
	return &attendanceService{
		repo:      repo,
		settings:  settings,
		activity:  activity,
		notifier:  notifier,
		dashboard: dashboard,
		logger:    logger,
		now:       time.Now,
	}
}

// ────────────────────── CheckIn ──────────────────────

func (s *attendanceService) CheckIn(ctx context.Context, userID, sessionID string, req *dto.CheckInRequest, ip string) (*dto.CheckInResponse, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	reg, err := s.repo.Registration.GetActive(ctx, userID, sessionID)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Error("查询报名失败", zap.String("user_id", userID), zap.Error(err))
			return nil, storageError(err)
		}
		reg = nil
	}

	existing, err := s.repo.Entry.GetByUserAndSession(ctx, userID, sessionID)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Error("查询签到记录失败", zap.String("user_id", userID), zap.Error(err))
			return nil, storageError(err)
		}
		existing = nil
	}

	grace := time.Duration(s.settings.Int(ctx, SettingCheckInGraceMinutes)) * time.Minute
	entry, created, err := lifecycle.CheckIn(userID, session, reg, existing, req.VerificationCode, grace, s.now())
	if err != nil {
		return nil, err
	}
	if !created {
		entry.LabSession = session
		return &dto.CheckInResponse{Entry: toEntryResponse(entry), Created: false}, nil
	}

	if err := s.persistCheckIn(ctx, entry, reg); err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		// 并发签到落败：返回先写入的那条记录
		winner, gerr := s.repo.Entry.GetByUserAndSession(ctx, userID, sessionID)
		if gerr != nil {
			s.logger.Error("重新读取签到记录失败", zap.String("user_id", userID), zap.Error(gerr))
			return nil, storageError(gerr)
		}
		winner.LabSession = session
		return &dto.CheckInResponse{Entry: toEntryResponse(winner), Created: false}, nil
	}

	s.logger.Info("签到成功", zap.String("user_id", userID), zap.String("lab_session_id", sessionID))

	s.activity.Record(ctx, ActivityEvent{
		ActorID: userID,
		Action:  ActionCheckIn,
		Details: fmt.Sprintf("%s (%s)", session.Title, sessionID),
		IP:      ip,
	})
	s.notifier.Notify(ctx, userID, Notice{
		Title:       "签到成功",
		Message:     fmt.Sprintf("你已完成实验课「%s」的签到", session.Title),
		Type:        model.NotifySuccess,
		RelatedType: RelatedEntry,
		RelatedID:   entry.EntryID,
	})
	s.dashboard.Invalidate(ctx, userID)

	entry.LabSession = session
	return &dto.CheckInResponse{Entry: toEntryResponse(entry), Created: true}, nil
}

// persistCheckIn 在同一事务内写入签到记录并把报名标记为 attended
// 唯一约束冲突时原样返回 gorm.ErrDuplicatedKey 供调用方走幂等路径
func (s *attendanceService) persistCheckIn(ctx context.Context, entry *model.Entry, reg *model.Registration) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return storageError(err)
	}
	defer func() {
		if r := recover(); r != nil {
			rollback(tx)
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	if err := txRepo.Entry.Create(ctx, entry); err != nil {
		rollback(tx)
		if isDuplicateKey(err) {
			return err
		}
		s.logger.Error("创建签到记录失败", zap.Error(err))
		return storageError(err)
	}

	reg.UpdatedBy = &entry.UserID
	if err := txRepo.Registration.Update(ctx, reg); err != nil {
		rollback(tx)
		s.logger.Error("更新报名状态失败", zap.String("id", reg.RegistrationID), zap.Error(err))
		return storageError(err)
	}

	if err := commit(tx); err != nil {
		s.logger.Error("提交事务失败", zap.Error(err))
		return storageError(err)
	}
	return nil
}

// ────────────────────── Submit ──────────────────────

func (s *attendanceService) Submit(ctx context.Context, userID, entryID string, req *dto.SubmitResultRequest, ip string) (*dto.EntryResponse, error) {
	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, apperr.NotFound("签到记录", entryID)
	}
	if len(req.Result) > 0 && !json.Valid(req.Result) {
		return nil, apperr.Validation("result", "实验结果必须是合法的 JSON")
	}

	if err := lifecycle.SubmitResult(entry, req.Result, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Entry.Close(ctx, entry); err != nil {
		if apperr.As(err) == nil {
			s.logger.Error("提交实验结果失败", zap.String("id", entryID), zap.Error(err))
		}
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: userID,
		Action:  ActionSubmitResult,
		Details: entryID,
		IP:      ip,
	})
	s.dashboard.Invalidate(ctx, userID)

	resp := toEntryResponse(entry)
	return &resp, nil
}

// ────────────────────── Grade ──────────────────────

func (s *attendanceService) Grade(ctx context.Context, graderID, entryID string, req *dto.GradeRequest, ip string) (*dto.EntryResponse, error) {
	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	session, err := s.getSession(ctx, entry.LabSessionID)
	if err != nil {
		return nil, err
	}

	maxScore := session.MaxScore
	if maxScore == nil {
		def := s.settings.Float(ctx, SettingDefaultMaxScore)
		maxScore = &def
	}

	if err := lifecycle.Grade(entry, *req.Score, req.Comment, graderID, maxScore, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Entry.Update(ctx, entry); err != nil {
		s.logger.Error("保存评分失败", zap.String("id", entryID), zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: graderID,
		Action:  ActionGrade,
		Details: fmt.Sprintf("%s score=%g", entryID, *req.Score),
		IP:      ip,
	})
	s.notifier.Notify(ctx, entry.UserID, Notice{
		Title:       "成绩已发布",
		Message:     fmt.Sprintf("实验课「%s」的成绩为 %g / %g", session.Title, *req.Score, *maxScore),
		Type:        model.NotifyInfo,
		RelatedType: RelatedEntry,
		RelatedID:   entryID,
	})
	s.dashboard.Invalidate(ctx, entry.UserID)

	entry.LabSession = session
	resp := toEntryResponse(entry)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *attendanceService) ListMine(ctx context.Context, userID string, req *dto.PaginationRequest) ([]dto.EntryResponse, int64, error) {
	entries, total, err := s.repo.Entry.ListByUser(ctx, userID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询我的签到记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, storageError(err)
	}

	list := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		list = append(list, toEntryResponse(&entries[i]))
	}
	return list, total, nil
}

func (s *attendanceService) ListBySession(ctx context.Context, sessionID string) ([]dto.EntryResponse, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	entries, err := s.repo.Entry.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("查询签到记录失败", zap.String("id", sessionID), zap.Error(err))
		return nil, storageError(err)
	}

	list := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		list = append(list, toEntryResponse(&entries[i]))
	}
	return list, nil
}

// ── 内部辅助方法 ──

func (s *attendanceService) getSession(ctx context.Context, id string) (*model.LabSession, error) {
	session, err := s.repo.LabSession.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("实验课", id)
		}
		s.logger.Error("查询实验课失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	return session, nil
}

func (s *attendanceService) getEntry(ctx context.Context, id string) (*model.Entry, error) {
	entry, err := s.repo.Entry.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("签到记录", id)
		}
		s.logger.Error("查询签到记录失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	return entry, nil
}

func toEntryResponse(e *model.Entry) dto.EntryResponse {
	resp := dto.EntryResponse{
		ID:               e.EntryID,
		UserID:           e.UserID,
		LabSessionID:     e.LabSessionID,
		RegistrationID:   e.RegistrationID,
		EntryTime:        formatTime(e.EntryTime),
		ExitTime:         formatTimePtr(e.ExitTime),
		Score:            e.Score,
		TeacherComment:   e.TeacherComment,
		SubmissionStatus: e.SubmissionStatus,
		GradedBy:         e.GradedBy,
		GradedAt:         formatTimePtr(e.GradedAt),
		User:             toUserBrief(e.User),
	}
	if len(e.Result) > 0 {
		resp.Result = json.RawMessage(e.Result)
	}
	if e.LabSession != nil {
		brief := toLabSessionBrief(e.LabSession)
		resp.LabSession = &brief
	}
	return resp
}
