package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// 通知关联对象类型
const (
	RelatedLabSession   = "lab_session"
	RelatedRegistration = "registration"
	RelatedEntry        = "entry"
)

// Notice 一条待发送的通知
type Notice struct {
	Title       string
	Message     string
	Type        string
	RelatedType string
	RelatedID   string
}

// NotificationService 通知业务接口
type NotificationService interface {
	// Notify 给单个用户发送通知；失败只记录警告
	Notify(ctx context.Context, userID string, n Notice)
	// NotifyMany 给多个用户发送同一条通知
	NotifyMany(ctx context.Context, userIDs []string, n Notice)

	List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, userID string, n Notice) {
	s.NotifyMany(ctx, []string{userID}, n)
}

func (s *notificationService) NotifyMany(ctx context.Context, userIDs []string, n Notice) {
	if len(userIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationWriteTimeout)
	defer cancel()

	typ := n.Type
	if typ == "" {
		typ = model.NotifyInfo
	}

	for _, uid := range userIDs {
		record := &model.Notification{
			UserID:  uid,
			Title:   n.Title,
			Message: truncateRunes(n.Message, notificationMessageMaxLen),
			Type:    typ,
		}
		if n.RelatedType != "" {
			rt, rid := n.RelatedType, n.RelatedID
			record.RelatedType = &rt
			record.RelatedID = &rid
		}
		if err := s.repo.Notification.Create(ctx, record); err != nil {
			s.logger.Warn("发送通知失败",
				zap.String("user_id", uid),
				zap.String("title", n.Title),
				zap.Error(err))
		}
	}
}

func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	items, total, err := s.repo.Notification.ListByUser(ctx, userID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, storageError(err)
	}

	list := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		list = append(list, dto.NotificationResponse{
			ID:          n.NotificationID,
			Title:       n.Title,
			Message:     n.Message,
			Type:        n.Type,
			IsRead:      n.IsRead,
			RelatedType: n.RelatedType,
			RelatedID:   n.RelatedID,
			ReadAt:      formatTimePtr(n.ReadAt),
			CreatedAt:   formatTime(n.CreatedAt),
		})
	}
	return list, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.Notification.MarkRead(ctx, id, userID); err != nil {
		if isNotFound(err) {
			return apperr.NotFound("通知", id)
		}
		s.logger.Error("标记通知已读失败", zap.String("id", id), zap.Error(err))
		return storageError(err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.Notification.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.String("user_id", userID), zap.Error(err))
		return 0, storageError(err)
	}
	return n, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.Notification.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("查询未读通知数失败", zap.String("user_id", userID), zap.Error(err))
		return 0, storageError(err)
	}
	return n, nil
}
