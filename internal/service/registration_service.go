package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// RegistrationService 报名业务接口
type RegistrationService interface {
	// Register 在实验课行锁内完成名额检查与写入
	Register(ctx context.Context, userID, sessionID string, req *dto.CreateRegistrationRequest, ip string) (*dto.RegistrationResponse, error)
	// Cancel 取消本人报名；非本人的报名视为不存在
	Cancel(ctx context.Context, userID, registrationID, ip string) error
	ListMine(ctx context.Context, userID string, req *dto.PaginationRequest) ([]dto.RegistrationResponse, int64, error)
	ListBySession(ctx context.Context, sessionID string) ([]dto.RegistrationResponse, error)
	UpdateStatus(ctx context.Context, callerID, registrationID string, req *dto.UpdateRegistrationStatusRequest, ip string) (*dto.RegistrationResponse, error)
}

type registrationService struct {
	repo      *repository.Repository
	settings  SettingService
	activity  ActivityService
	notifier  NotificationService
	dashboard DashboardService
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService 创建 RegistrationService 实例
func NewRegistrationService(
	repo *repository.Repository,
	settings SettingService,
	activity ActivityService,
	notifier NotificationService,
	dashboard DashboardService,
	logger *zap.Logger,
) RegistrationService {
	return &registrationService{
		repo:      repo,
		settings:  settings,
		activity:  activity,
		notifier:  notifier,
		dashboard: dashboard,
		logger:    logger,
		now:       time.Now,
	}
}

// ────────────────────── Register ──────────────────────

func (s *registrationService) Register(ctx context.Context, userID, sessionID string, req *dto.CreateRegistrationRequest, ip string) (*dto.RegistrationResponse, error) {
	if !s.settings.Bool(ctx, SettingRegistrationEnabled) {
		return nil, apperr.ErrRegistrationClosed.WithEntity(sessionID)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, storageError(err)
	}
	defer func() {
		if r := recover(); r != nil {
			rollback(tx)
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	session, err := txRepo.LabSession.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		rollback(tx)
		if isNotFound(err) {
			return nil, apperr.NotFound("实验课", sessionID)
		}
		s.logger.Error("锁定实验课失败", zap.String("id", sessionID), zap.Error(err))
		return nil, storageError(err)
	}

	existing, err := txRepo.Registration.GetActive(ctx, userID, sessionID)
	if err != nil && !isNotFound(err) {
		rollback(tx)
		s.logger.Error("查询报名失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storageError(err)
	}

	count, err := txRepo.Registration.CountActive(ctx, sessionID)
	if err != nil {
		rollback(tx)
		s.logger.Error("统计报名人数失败", zap.String("id", sessionID), zap.Error(err))
		return nil, storageError(err)
	}

	reg, err := lifecycle.Register(userID, session, existing, count, req.Notes, s.now())
	if err != nil {
		rollback(tx)
		return nil, err
	}
	reg.CreatedBy = &userID
	reg.UpdatedBy = &userID

	if err := txRepo.Registration.Create(ctx, reg); err != nil {
		rollback(tx)
		if isDuplicateKey(err) {
			return nil, apperr.ErrDuplicateRegistration.WithEntity(sessionID)
		}
		s.logger.Error("创建报名失败", zap.String("id", sessionID), zap.Error(err))
		return nil, storageError(err)
	}

	if err := commit(tx); err != nil {
		s.logger.Error("提交事务失败", zap.Error(err))
		return nil, storageError(err)
	}

	s.logger.Info("报名成功",
		zap.String("user_id", userID),
		zap.String("lab_session_id", sessionID),
		zap.Int("priority", reg.Priority),
	)

	s.activity.Record(ctx, ActivityEvent{
		ActorID: userID,
		Action:  ActionRegister,
		Details: fmt.Sprintf("%s (%s)", session.Title, sessionID),
		IP:      ip,
	})
	n := Notice{
		Title:       "报名成功",
		Message:     fmt.Sprintf("你已报名实验课「%s」", session.Title),
		Type:        model.NotifySuccess,
		RelatedType: RelatedRegistration,
		RelatedID:   reg.RegistrationID,
	}
	if !reg.IsConfirmed {
		n.Title = "报名待确认"
		n.Message = fmt.Sprintf("你对实验课「%s」的报名已提交，等待管理员确认", session.Title)
		n.Type = model.NotifyInfo
	}
	s.notifier.Notify(ctx, userID, n)
	s.dashboard.Invalidate(ctx, userID)

	reg.LabSession = session
	resp := toRegistrationResponse(reg)
	return &resp, nil
}

// ────────────────────── Cancel ──────────────────────

func (s *registrationService) Cancel(ctx context.Context, userID, registrationID, ip string) error {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg.UserID != userID {
		return apperr.NotFound("报名", registrationID)
	}

	switch {
	case reg.Status == model.RegistrationCancelled:
		return apperr.ErrRegistrationCancelled.WithEntity(registrationID)
	case reg.LabSession != nil && !lifecycle.CanMutateRegistration(reg.LabSession, s.now()):
		return apperr.ErrRegistrationLocked.WithEntity(registrationID)
	case reg.Status == model.RegistrationAttended:
		return apperr.ErrAlreadyCheckedIn.WithEntity(registrationID)
	}
	if err := s.ensureNoEntry(ctx, reg); err != nil {
		return err
	}

	reg.Status = model.RegistrationCancelled
	reg.UpdatedBy = &userID
	if err := s.repo.Registration.Update(ctx, reg); err != nil {
		s.logger.Error("取消报名失败", zap.String("id", registrationID), zap.Error(err))
		return storageError(err)
	}

	title := reg.LabSessionID
	if reg.LabSession != nil {
		title = reg.LabSession.Title
	}
	s.activity.Record(ctx, ActivityEvent{
		ActorID: userID,
		Action:  ActionRegistrationCancel,
		Details: fmt.Sprintf("%s (%s)", title, registrationID),
		IP:      ip,
	})
	s.dashboard.Invalidate(ctx, userID)
	return nil
}

// ────────────────────── List ──────────────────────

func (s *registrationService) ListMine(ctx context.Context, userID string, req *dto.PaginationRequest) ([]dto.RegistrationResponse, int64, error) {
	regs, total, err := s.repo.Registration.ListByUser(ctx, userID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询我的报名失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, storageError(err)
	}

	list := make([]dto.RegistrationResponse, 0, len(regs))
	for i := range regs {
		list = append(list, toRegistrationResponse(&regs[i]))
	}
	return list, total, nil
}

func (s *registrationService) ListBySession(ctx context.Context, sessionID string) ([]dto.RegistrationResponse, error) {
	if _, err := s.repo.LabSession.GetByID(ctx, sessionID); err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("实验课", sessionID)
		}
		s.logger.Error("查询实验课失败", zap.String("id", sessionID), zap.Error(err))
		return nil, storageError(err)
	}

	regs, err := s.repo.Registration.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("查询报名列表失败", zap.String("id", sessionID), zap.Error(err))
		return nil, storageError(err)
	}

	list := make([]dto.RegistrationResponse, 0, len(regs))
	for i := range regs {
		list = append(list, toRegistrationResponse(&regs[i]))
	}
	return list, nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *registrationService) UpdateStatus(ctx context.Context, callerID, registrationID string, req *dto.UpdateRegistrationStatusRequest, ip string) (*dto.RegistrationResponse, error) {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status == model.RegistrationCancelled {
		return nil, apperr.ErrRegistrationCancelled.WithEntity(registrationID)
	}
	if reg.LabSession != nil && !lifecycle.CanMutateRegistration(reg.LabSession, s.now()) {
		return nil, apperr.ErrRegistrationLocked.WithEntity(registrationID)
	}

	confirmedNow := false
	if req.Status != "" && req.Status != reg.Status {
		if !canSetRegistrationStatus(reg.Status, req.Status) {
			return nil, apperr.ErrRegistrationStatus.WithEntity(registrationID)
		}
		if err := s.ensureNoEntry(ctx, reg); err != nil {
			return nil, err
		}
		reg.Status = req.Status
	}
	if req.IsConfirmed != nil && *req.IsConfirmed != reg.IsConfirmed {
		reg.IsConfirmed = *req.IsConfirmed
		if reg.IsConfirmed {
			at := s.now()
			reg.ConfirmedAt = &at
			confirmedNow = true
		} else {
			reg.ConfirmedAt = nil
		}
	}
	reg.UpdatedBy = &callerID

	if err := s.repo.Registration.Update(ctx, reg); err != nil {
		s.logger.Error("更新报名状态失败", zap.String("id", registrationID), zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionRegistrationUpdate,
		Details: fmt.Sprintf("%s status=%s confirmed=%t", registrationID, reg.Status, reg.IsConfirmed),
		IP:      ip,
	})
	if confirmedNow && reg.LabSession != nil {
		s.notifier.Notify(ctx, reg.UserID, Notice{
			Title:       "报名已确认",
			Message:     fmt.Sprintf("你对实验课「%s」的报名已确认", reg.LabSession.Title),
			Type:        model.NotifySuccess,
			RelatedType: RelatedRegistration,
			RelatedID:   registrationID,
		})
	}
	s.dashboard.Invalidate(ctx, reg.UserID)

	resp := toRegistrationResponse(reg)
	return &resp, nil
}

// ── 内部辅助方法 ──

// canSetRegistrationStatus 管理员只能在 registered 与 absent 之间切换
func canSetRegistrationStatus(from, to string) bool {
	switch from {
	case model.RegistrationRegistered:
		return to == model.RegistrationAbsent
	case model.RegistrationAbsent:
		return to == model.RegistrationRegistered
	}
	return false
}

// ensureNoEntry 已存在签到记录时报名不可再变更
func (s *registrationService) ensureNoEntry(ctx context.Context, reg *model.Registration) error {
	_, err := s.repo.Entry.GetByUserAndSession(ctx, reg.UserID, reg.LabSessionID)
	if err == nil {
		return apperr.ErrAlreadyCheckedIn.WithEntity(reg.RegistrationID)
	}
	if isNotFound(err) {
		return nil
	}
	s.logger.Error("查询签到记录失败", zap.String("id", reg.RegistrationID), zap.Error(err))
	return storageError(err)
}

func (s *registrationService) getRegistration(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := s.repo.Registration.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("报名", id)
		}
		s.logger.Error("查询报名失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	return reg, nil
}

func toRegistrationResponse(reg *model.Registration) dto.RegistrationResponse {
	resp := dto.RegistrationResponse{
		ID:           reg.RegistrationID,
		UserID:       reg.UserID,
		LabSessionID: reg.LabSessionID,
		Notes:        reg.Notes,
		Status:       reg.Status,
		Priority:     reg.Priority,
		IsConfirmed:  reg.IsConfirmed,
		ConfirmedAt:  formatTimePtr(reg.ConfirmedAt),
		CreatedAt:    formatTime(reg.CreatedAt),
		User:         toUserBrief(reg.User),
	}
	if reg.LabSession != nil {
		brief := toLabSessionBrief(reg.LabSession)
		resp.LabSession = &brief
	}
	return resp
}
