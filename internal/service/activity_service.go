package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
)

// 操作类型
const (
	ActionLogin              = "auth.login"
	ActionUserRegister       = "auth.register"
	ActionPasswordChange     = "auth.password_change"
	ActionRoleChange         = "user.role_change"
	ActionUserActive         = "user.active_change"
	ActionUserDelete         = "user.delete"
	ActionSessionCreate      = "lab_session.create"
	ActionSessionUpdate      = "lab_session.update"
	ActionSessionDelete      = "lab_session.delete"
	ActionSessionStatus      = "lab_session.status_change"
	ActionSessionCodeReset   = "lab_session.code_reset"
	ActionRegister           = "registration.create"
	ActionRegistrationCancel = "registration.cancel"
	ActionRegistrationUpdate = "registration.update"
	ActionCheckIn            = "entry.check_in"
	ActionSubmitResult       = "entry.submit"
	ActionGrade              = "entry.grade"
	ActionSettingChange      = "setting.update"
	ActionSettingReset       = "setting.reset"
)

const (
	activityWriteTimeout      = 3 * time.Second
	activityDetailsMaxRunes   = 2000
	notificationWriteTimeout  = 3 * time.Second
	notificationMessageMaxLen = 2000
)

// ActivityEvent 一条操作记录
type ActivityEvent struct {
	ActorID string
	Action  string
	Details string
	IP      string
}

// ActivityService 操作日志业务接口
type ActivityService interface {
	// Record 写入操作日志；失败只记录警告，不影响主流程
	Record(ctx context.Context, ev ActivityEvent)
	List(ctx context.Context, req *dto.ActivityLogListRequest) ([]dto.ActivityLogResponse, int64, error)
}

type activityService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewActivityService 创建 ActivityService 实例
func NewActivityService(repo *repository.Repository, logger *zap.Logger) ActivityService {
	return &activityService{repo: repo, logger: logger}
}

func (s *activityService) Record(ctx context.Context, ev ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityWriteTimeout)
	defer cancel()

	log := &model.ActivityLog{
		Action:    ev.Action,
		Details:   truncateRunes(ev.Details, activityDetailsMaxRunes),
		IPAddress: ev.IP,
	}
	if ev.ActorID != "" {
		actor := ev.ActorID
		log.ActorID = &actor
	}

	if err := s.repo.ActivityLog.Create(ctx, log); err != nil {
		s.logger.Warn("写入操作日志失败",
			zap.String("action", ev.Action),
			zap.String("actor_id", ev.ActorID),
			zap.Error(err))
	}
}

func (s *activityService) List(ctx context.Context, req *dto.ActivityLogListRequest) ([]dto.ActivityLogResponse, int64, error) {
	filters := &repository.ActivityLogFilters{ActorID: req.ActorID, Action: req.Action}
	logs, total, err := s.repo.ActivityLog.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询操作日志失败", zap.Error(err))
		return nil, 0, storageError(err)
	}

	list := make([]dto.ActivityLogResponse, 0, len(logs))
	for _, l := range logs {
		list = append(list, dto.ActivityLogResponse{
			ID:        l.ActivityLogID,
			ActorID:   l.ActorID,
			Action:    l.Action,
			Details:   l.Details,
			IPAddress: l.IPAddress,
			CreatedAt: formatTime(l.CreatedAt),
		})
	}
	return list, total, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
