package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// UserService 用户管理业务接口
//
// 调用者角色一律从数据库读取，不信任 Token 中可能过期的角色。
type UserService interface {
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	AssignRole(ctx context.Context, callerID, targetID, role, ip string) (*dto.UserResponse, error)
	SetActive(ctx context.Context, callerID, targetID string, active bool, ip string) (*dto.UserResponse, error)
	Delete(ctx context.Context, callerID, targetID, ip string) error
}

type userService struct {
	repo     *repository.Repository
	activity ActivityService
	notifier NotificationService
	logger   *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, activity ActivityService, notifier NotificationService, logger *zap.Logger) UserService {
	return &userService{repo: repo, activity: activity, notifier: notifier, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	filters := &repository.UserListFilters{
		Role:     req.Role,
		Keyword:  req.Keyword,
		IsActive: req.IsActive,
	}
	users, total, err := s.repo.User.ListWithFilters(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, storageError(err)
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, total, nil
}

// ────────────────────── Get ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── AssignRole ──────────────────────

func (s *userService) AssignRole(ctx context.Context, callerID, targetID, role, ip string) (*dto.UserResponse, error) {
	if callerID == targetID {
		return nil, apperr.ErrSelfRoleChange
	}

	caller, target, err := s.loadPair(ctx, callerID, targetID)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.CanAssignRole(caller.Role, target.Role, role); err != nil {
		return nil, err
	}
	if target.Role == role {
		resp := toUserResponse(target)
		return &resp, nil
	}

	oldRole := target.Role
	target.Role = role
	target.UpdatedBy = &callerID
	if err := s.repo.User.Update(ctx, target); err != nil {
		s.logger.Error("更新用户角色失败", zap.String("id", targetID), zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionRoleChange,
		Details: fmt.Sprintf("user=%s %s→%s", target.Username, oldRole, role),
		IP:      ip,
	})
	s.notifier.Notify(ctx, target.UserID, Notice{
		Title:   "角色已变更",
		Message: fmt.Sprintf("你的角色已由 %s 变更为 %s", oldRole, role),
		Type:    model.NotifyInfo,
	})

	resp := toUserResponse(target)
	return &resp, nil
}

// ────────────────────── SetActive ──────────────────────

func (s *userService) SetActive(ctx context.Context, callerID, targetID string, active bool, ip string) (*dto.UserResponse, error) {
	if callerID == targetID {
		return nil, apperr.ErrSelfDeactivate
	}

	caller, target, err := s.loadPair(ctx, callerID, targetID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanManageUser(caller.Role, target.Role); err != nil {
		return nil, err
	}

	if target.IsActive != active {
		target.IsActive = active
		target.UpdatedBy = &callerID
		if err := s.repo.User.Update(ctx, target); err != nil {
			s.logger.Error("更新用户状态失败", zap.String("id", targetID), zap.Error(err))
			return nil, storageError(err)
		}
		s.activity.Record(ctx, ActivityEvent{
			ActorID: callerID,
			Action:  ActionUserActive,
			Details: fmt.Sprintf("user=%s active=%t", target.Username, active),
			IP:      ip,
		})
	}

	resp := toUserResponse(target)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, callerID, targetID, ip string) error {
	if callerID == targetID {
		return apperr.ErrSelfDelete
	}

	caller, target, err := s.loadPair(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if err := lifecycle.CanManageUser(caller.Role, target.Role); err != nil {
		return err
	}

	if err := s.repo.User.Delete(ctx, targetID, callerID); err != nil {
		s.logger.Error("删除用户失败", zap.String("id", targetID), zap.Error(err))
		return storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionUserDelete,
		Details: "user=" + target.Username,
		IP:      ip,
	})
	return nil
}

// ── 内部辅助方法 ──

func (s *userService) getUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("用户", id)
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, storageError(err)
	}
	return user, nil
}

func (s *userService) loadPair(ctx context.Context, callerID, targetID string) (*model.User, *model.User, error) {
	caller, err := s.getUser(ctx, callerID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil, apperr.ErrForbidden
		}
		return nil, nil, err
	}
	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	return caller, target, nil
}
