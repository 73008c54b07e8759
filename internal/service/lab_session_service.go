package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

const dateLayout = "2006-01-02"

// LabSessionService 实验课业务接口
type LabSessionService interface {
	Create(ctx context.Context, req *dto.CreateLabSessionRequest, callerID, ip string) (*dto.LabSessionResponse, error)
	// GetByID viewerRole 达到 admin 时返回签到码
	GetByID(ctx context.Context, id, viewerRole string) (*dto.LabSessionResponse, error)
	// List 未指定 page_size 时使用 items_per_page 设置
	List(ctx context.Context, req *dto.LabSessionListRequest, viewerRole string) ([]dto.LabSessionResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateLabSessionRequest, callerID, ip string) (*dto.LabSessionResponse, error)
	Delete(ctx context.Context, id, callerID, ip string) error
	ChangeStatus(ctx context.Context, id, to, callerID, ip string) (*dto.LabSessionResponse, error)
	RegenerateCode(ctx context.Context, id, code, callerID, ip string) (*dto.VerificationCodeResponse, error)
	Stats(ctx context.Context, id string) (*dto.SessionStatsResponse, error)
	RoomPlan(ctx context.Context, req *dto.RoomPlanRequest) ([]dto.RoomAssignmentResponse, error)
}

type labSessionService struct {
	repo      *repository.Repository
	rooms     []string
	loc       *time.Location
	settings  SettingService
	activity  ActivityService
	notifier  NotificationService
	dashboard DashboardService
	logger    *zap.Logger
}

// NewLabSessionService 创建 LabSessionService 实例
func NewLabSessionService(
	cfg *config.Config,
	repo *repository.Repository,
	settings SettingService,
	activity ActivityService,
	notifier NotificationService,
	dashboard DashboardService,
	logger *zap.Logger,
) LabSessionService {
	return &labSessionService{
		repo:      repo,
		rooms:     cfg.Lab.Rooms,
		loc:       cfg.Lab.Location(),
		settings:  settings,
		activity:  activity,
		notifier:  notifier,
		dashboard: dashboard,
		logger:    logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *labSessionService) Create(ctx context.Context, req *dto.CreateLabSessionRequest, callerID, ip string) (*dto.LabSessionResponse, error) {
	if err := lifecycle.ValidateSchedule(req.StartTime, req.EndTime, req.MaxParticipants); err != nil {
		return nil, err
	}

	date, err := s.sessionDate(req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}

	code := req.VerificationCode
	if code == "" {
		if code, err = lifecycle.GenerateVerificationCode(); err != nil {
			s.logger.Error("生成签到码失败", zap.Error(err))
			return nil, err
		}
	} else if !lifecycle.ValidVerificationCode(code) {
		return nil, apperr.ErrInvalidVerificationFmt.WithField("verification_code")
	}

	maxScore := req.MaxScore
	if maxScore == nil {
		def := s.settings.Float(ctx, SettingDefaultMaxScore)
		maxScore = &def
	}

	session := &model.LabSession{
		Title:                 strings.TrimSpace(req.Title),
		Description:           req.Description,
		Date:                  date,
		StartTime:             req.StartTime.UTC(),
		EndTime:               req.EndTime.UTC(),
		Location:              req.Location,
		MaxParticipants:       req.MaxParticipants,
		IsActive:              boolOr(req.IsActive, true),
		VerificationCode:      code,
		Status:                model.SessionScheduled,
		AllowLateRegistration: req.AllowLateRegistration,
		AutoApprove:           boolOr(req.AutoApprove, true),
		Tags:                  stringSlice(req.Tags),
		Difficulty:            req.Difficulty,
		Equipment:             stringSlice(req.Equipment),
		MaxScore:              maxScore,
		TimeLimitMinutes:      req.TimeLimitMinutes,
		Version:               1,
	}
	session.CreatedBy = &callerID
	session.UpdatedBy = &callerID

	if err := s.repo.LabSession.Create(ctx, session); err != nil {
		s.logger.Error("创建实验课失败", zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionSessionCreate,
		Details: fmt.Sprintf("%s (%s)", session.Title, session.LabSessionID),
		IP:      ip,
	})
	s.dashboard.Invalidate(ctx)

	return s.toResponse(session, nil, true), nil
}

// ────────────────────── Get / List ──────────────────────

func (s *labSessionService) GetByID(ctx context.Context, id, viewerRole string) (*dto.LabSessionResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	admin := lifecycle.HasLevel(viewerRole, model.RoleAdmin)
	if !session.IsActive && !admin {
		return nil, apperr.NotFound("实验课", id)
	}

	count, err := s.repo.Registration.CountActive(ctx, id)
	if err != nil {
		s.logger.Error("统计报名人数失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}

	return s.toResponse(session, &count, admin), nil
}

func (s *labSessionService) List(ctx context.Context, req *dto.LabSessionListRequest, viewerRole string) ([]dto.LabSessionResponse, int64, error) {
	if req.PageSize == 0 {
		req.PageSize = s.settings.Int(ctx, SettingItemsPerPage)
	}

	from, to, err := s.parseRange(req.From, req.To)
	if err != nil {
		return nil, 0, err
	}

	admin := lifecycle.HasLevel(viewerRole, model.RoleAdmin)
	filters := &repository.LabSessionListFilters{
		Status:     req.Status,
		Keyword:    req.Keyword,
		From:       from,
		To:         to,
		ActiveOnly: !admin,
	}

	sessions, total, err := s.repo.LabSession.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询实验课列表失败", zap.Error(err))
		return nil, 0, storageError(err)
	}

	list := make([]dto.LabSessionResponse, 0, len(sessions))
	for i := range sessions {
		list = append(list, *s.toResponse(&sessions[i], nil, admin))
	}
	return list, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *labSessionService) Update(ctx context.Context, id string, req *dto.UpdateLabSessionRequest, callerID, ip string) (*dto.LabSessionResponse, error) {
	// 与报名共用实验课行锁，人数上限的校验与写入不会被并发报名穿插
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

	session, err := txRepo.LabSession.GetByIDForUpdate(ctx, id)
	if err != nil {
		rollback(tx)
		if isNotFound(err) {
			return nil, apperr.NotFound("实验课", id)
		}
		s.logger.Error("锁定实验课失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	if session.Version != req.Version {
		rollback(tx)
		return nil, apperr.ErrOptimisticLock.WithEntity(id)
	}
	if session.Status == model.SessionCompleted || session.Status == model.SessionCancelled {
		rollback(tx)
		return nil, apperr.ErrInvalidStatusTransition.WithEntity(id)
	}

	oldStart, oldEnd, oldLocation := session.StartTime, session.EndTime, session.Location

	if err := s.applyUpdate(session, req); err != nil {
		rollback(tx)
		return nil, err
	}
	if err := lifecycle.ValidateSchedule(session.StartTime, session.EndTime, session.MaxParticipants); err != nil {
		rollback(tx)
		return nil, err
	}

	active, err := txRepo.Registration.CountActive(ctx, id)
	if err != nil {
		rollback(tx)
		s.logger.Error("统计报名人数失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	if int64(session.MaxParticipants) < active {
		rollback(tx)
		return nil, apperr.Validation("max_participants", "人数上限不能低于当前报名人数")
	}

	regs, err := txRepo.Registration.ListBySession(ctx, id)
	if err != nil {
		rollback(tx)
		s.logger.Error("查询报名列表失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	registrants := activeRegistrantIDs(regs)

	session.UpdatedBy = &callerID
	if err := txRepo.LabSession.Update(ctx, session); err != nil {
		rollback(tx)
		s.logger.Error("更新实验课失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	if err := commit(tx); err != nil {
		s.logger.Error("提交事务失败", zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionSessionUpdate,
		Details: fmt.Sprintf("%s (%s)", session.Title, id),
		IP:      ip,
	})
	if !oldStart.Equal(session.StartTime) || !oldEnd.Equal(session.EndTime) || oldLocation != session.Location {
		s.notifier.NotifyMany(ctx, registrants, Notice{
			Title:       "实验课安排变更",
			Message:     fmt.Sprintf("实验课「%s」的时间或地点已调整，请查看最新安排", session.Title),
			Type:        model.NotifyWarning,
			RelatedType: RelatedLabSession,
			RelatedID:   id,
		})
	}
	s.dashboard.Invalidate(ctx, registrants...)

	count := int64(len(registrants))
	return s.toResponse(session, &count, true), nil
}

// ────────────────────── Delete ──────────────────────

func (s *labSessionService) Delete(ctx context.Context, id, callerID, ip string) error {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return err
	}

	regs, err := s.repo.Registration.ListBySession(ctx, id)
	if err != nil {
		s.logger.Error("查询报名列表失败", zap.String("id", id), zap.Error(err))
		return storageError(err)
	}
	registrants := activeRegistrantIDs(regs)

	if err := s.repo.LabSession.Delete(ctx, id); err != nil {
		s.logger.Error("删除实验课失败", zap.String("id", id), zap.Error(err))
		return storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionSessionDelete,
		Details: fmt.Sprintf("%s (%s)", session.Title, id),
		IP:      ip,
	})
	if session.Status == model.SessionScheduled || session.Status == model.SessionOngoing {
		s.notifier.NotifyMany(ctx, registrants, Notice{
			Title:   "实验课已取消",
			Message: fmt.Sprintf("实验课「%s」已被删除，你的报名随之取消", session.Title),
			Type:    model.NotifyWarning,
		})
	}
	s.dashboard.Invalidate(ctx, registrants...)
	return nil
}

// ────────────────────── ChangeStatus ──────────────────────

func (s *labSessionService) ChangeStatus(ctx context.Context, id, to, callerID, ip string) (*dto.LabSessionResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	from := session.Status
	if err := lifecycle.Transition(session, to); err != nil {
		return nil, err
	}

	session.UpdatedBy = &callerID
	if err := s.repo.LabSession.Update(ctx, session); err != nil {
		s.logger.Error("更新实验课状态失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}

	regs, err := s.repo.Registration.ListBySession(ctx, id)
	if err != nil {
		s.logger.Warn("查询报名列表失败，跳过通知", zap.String("id", id), zap.Error(err))
	}
	registrants := activeRegistrantIDs(regs)

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionSessionStatus,
		Details: fmt.Sprintf("%s %s→%s", id, from, to),
		IP:      ip,
	})
	if n, ok := statusNotice(session, to); ok {
		s.notifier.NotifyMany(ctx, registrants, n)
	}
	s.dashboard.Invalidate(ctx, registrants...)

	count := int64(len(registrants))
	return s.toResponse(session, &count, true), nil
}

func statusNotice(session *model.LabSession, to string) (Notice, bool) {
	n := Notice{RelatedType: RelatedLabSession, RelatedID: session.LabSessionID}
	switch to {
	case model.SessionOngoing:
		n.Title = "实验课已开始"
		n.Message = fmt.Sprintf("实验课「%s」已开始，请凭签到码签到", session.Title)
		n.Type = model.NotifyInfo
	case model.SessionCancelled:
		n.Title = "实验课已取消"
		n.Message = fmt.Sprintf("实验课「%s」已取消", session.Title)
		n.Type = model.NotifyWarning
	case model.SessionCompleted:
		n.Title = "实验课已结束"
		n.Message = fmt.Sprintf("实验课「%s」已结束", session.Title)
		n.Type = model.NotifySuccess
	default:
		return n, false
	}
	return n, true
}

// ────────────────────── RegenerateCode ──────────────────────

func (s *labSessionService) RegenerateCode(ctx context.Context, id, code, callerID, ip string) (*dto.VerificationCodeResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if code == "" {
		if code, err = lifecycle.GenerateVerificationCode(); err != nil {
			s.logger.Error("生成签到码失败", zap.Error(err))
			return nil, err
		}
	} else if !lifecycle.ValidVerificationCode(code) {
		return nil, apperr.ErrInvalidVerificationFmt.WithField("code")
	}

	session.VerificationCode = code
	session.UpdatedBy = &callerID
	if err := s.repo.LabSession.Update(ctx, session); err != nil {
		s.logger.Error("更新签到码失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{ActorID: callerID, Action: ActionSessionCodeReset, Details: id, IP: ip})

	return &dto.VerificationCodeResponse{LabSessionID: id, VerificationCode: code}, nil
}

// ────────────────────── Stats ──────────────────────

func (s *labSessionService) Stats(ctx context.Context, id string) (*dto.SessionStatsResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	regs, err := s.repo.Registration.ListBySession(ctx, id)
	if err != nil {
		s.logger.Error("查询报名列表失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	entries, err := s.repo.Entry.ListBySession(ctx, id)
	if err != nil {
		s.logger.Error("查询签到记录失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}

	st := lifecycle.Summarize(session, regs, entries)
	return &dto.SessionStatsResponse{
		LabSessionID:   id,
		Capacity:       session.MaxParticipants,
		Registered:     st.Registered,
		Attended:       st.Attended,
		Absent:         st.Absent,
		Cancelled:      st.Cancelled,
		Available:      st.Available,
		Submitted:      st.Submitted,
		Graded:         st.Graded,
		CompletionRate: st.CompletionRate,
		AverageScore:   st.AverageScore,
	}, nil
}

// ────────────────────── RoomPlan ──────────────────────

func (s *labSessionService) RoomPlan(ctx context.Context, req *dto.RoomPlanRequest) ([]dto.RoomAssignmentResponse, error) {
	from, to, err := s.parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.LabSession.ListInRange(ctx, from, to)
	if err != nil {
		s.logger.Error("查询实验课失败", zap.Error(err))
		return nil, storageError(err)
	}

	plan := lifecycle.AssignRooms(sessions, s.rooms)
	list := make([]dto.RoomAssignmentResponse, 0, len(plan))
	for _, a := range plan {
		list = append(list, dto.RoomAssignmentResponse{
			LabSessionID: a.LabSessionID,
			Title:        a.Title,
			Date:         a.Date.Format(dateLayout),
			StartTime:    formatTime(a.StartTime),
			EndTime:      formatTime(a.EndTime),
			Room:         a.Room,
		})
	}
	return list, nil
}

// ── 内部辅助方法 ──

// applyUpdate 将请求中的非空字段写入 session
func (s *labSessionService) applyUpdate(session *model.LabSession, req *dto.UpdateLabSessionRequest) error {
	if req.Title != nil {
		session.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.StartTime != nil {
		session.StartTime = req.StartTime.UTC()
	}
	if req.EndTime != nil {
		session.EndTime = req.EndTime.UTC()
	}
	if req.Date != nil || req.StartTime != nil {
		raw := ""
		if req.Date != nil {
			raw = *req.Date
		}
		date, err := s.sessionDate(raw, session.StartTime)
		if err != nil {
			return err
		}
		session.Date = date
	}
	if req.Location != nil {
		session.Location = *req.Location
	}
	if req.MaxParticipants != nil {
		session.MaxParticipants = *req.MaxParticipants
	}
	if req.IsActive != nil {
		session.IsActive = *req.IsActive
	}
	if req.AllowLateRegistration != nil {
		session.AllowLateRegistration = *req.AllowLateRegistration
	}
	if req.AutoApprove != nil {
		session.AutoApprove = *req.AutoApprove
	}
	if req.Tags != nil {
		session.Tags = stringSlice(req.Tags)
	}
	if req.Difficulty != nil {
		session.Difficulty = req.Difficulty
	}
	if req.Equipment != nil {
		session.Equipment = stringSlice(req.Equipment)
	}
	if req.MaxScore != nil {
		session.MaxScore = req.MaxScore
	}
	if req.TimeLimitMinutes != nil {
		session.TimeLimitMinutes = req.TimeLimitMinutes
	}
	return nil
}

func (s *labSessionService) getSession(ctx context.Context, id string) (*model.LabSession, error) {
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

// sessionDate 解析日期；raw 为空时取开始时间在业务时区下的日期
func (s *labSessionService) sessionDate(raw string, start time.Time) (time.Time, error) {
	if raw == "" {
		local := start.In(s.loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("date", "日期格式必须为 YYYY-MM-DD")
	}
	return d, nil
}

// parseRange 将 [from, to] 日期转换为业务时区下的 [from 00:00, to+1 00:00)
func (s *labSessionService) parseRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromRaw != "" {
		d, err := time.ParseInLocation(dateLayout, fromRaw, s.loc)
		if err != nil {
			return nil, nil, apperr.Validation("from", "日期格式必须为 YYYY-MM-DD")
		}
		from = &d
	}
	if toRaw != "" {
		d, err := time.ParseInLocation(dateLayout, toRaw, s.loc)
		if err != nil {
			return nil, nil, apperr.Validation("to", "日期格式必须为 YYYY-MM-DD")
		}
		d = d.AddDate(0, 0, 1)
		to = &d
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, apperr.Validation("to", "结束日期不能早于开始日期")
	}
	return from, to, nil
}

func (s *labSessionService) toResponse(session *model.LabSession, registered *int64, admin bool) *dto.LabSessionResponse {
	resp := &dto.LabSessionResponse{
		ID:                    session.LabSessionID,
		Title:                 session.Title,
		Description:           session.Description,
		Date:                  session.Date.Format(dateLayout),
		StartTime:             formatTime(session.StartTime),
		EndTime:               formatTime(session.EndTime),
		Location:              session.Location,
		MaxParticipants:       session.MaxParticipants,
		RegisteredCount:       registered,
		IsActive:              session.IsActive,
		Status:                session.Status,
		AllowLateRegistration: session.AllowLateRegistration,
		AutoApprove:           session.AutoApprove,
		Tags:                  []string(session.Tags),
		Difficulty:            session.Difficulty,
		Equipment:             []string(session.Equipment),
		MaxScore:              session.MaxScore,
		TimeLimitMinutes:      session.TimeLimitMinutes,
		Version:               session.Version,
		CreatedAt:             formatTime(session.CreatedAt),
		UpdatedAt:             formatTime(session.UpdatedAt),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if resp.Equipment == nil {
		resp.Equipment = []string{}
	}
	if admin {
		resp.VerificationCode = session.VerificationCode
	}
	return resp
}

func toLabSessionBrief(session *model.LabSession) dto.LabSessionBrief {
	return dto.LabSessionBrief{
		ID:        session.LabSessionID,
		Title:     session.Title,
		StartTime: formatTime(session.StartTime),
		EndTime:   formatTime(session.EndTime),
		Location:  session.Location,
		Status:    session.Status,
	}
}

func activeRegistrantIDs(regs []model.Registration) []string {
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		if r.IsActive() {
			ids = append(ids, r.UserID)
		}
	}
	return ids
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringSlice(v []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return datatypes.JSONSlice[string](out)
}
