package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
)

// RegistrationRepository 报名数据访问接口
type RegistrationRepository interface {
	Create(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	// GetActive 查询用户在某实验课上未取消的报名
	GetActive(ctx context.Context, userID, labSessionID string) (*model.Registration, error)
	CountActive(ctx context.Context, labSessionID string) (int64, error)
	Update(ctx context.Context, reg *model.Registration) error
	ListBySession(ctx context.Context, labSessionID string) ([]model.Registration, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Registration, int64, error)
	// CountByStatus 按状态统计报名数；userID 为空时统计全部
	CountByStatus(ctx context.Context, userID string) (map[string]int64, error)
}

type registrationRepo struct {
	db *gorm.DB
}

// NewRegistrationRepo 创建 RegistrationRepository 实例
func NewRegistrationRepo(db *gorm.DB) RegistrationRepository {
	return &registrationRepo{db: db}
}

func (r *registrationRepo) Create(ctx context.Context, reg *model.Registration) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *registrationRepo) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).
		Preload("LabSession").
		Where("registration_id = ?", id).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *registrationRepo) GetActive(ctx context.Context, userID, labSessionID string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lab_session_id = ? AND status <> ?", userID, labSessionID, model.RegistrationCancelled).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *registrationRepo) CountActive(ctx context.Context, labSessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Registration{}).
		Where("lab_session_id = ? AND status <> ?", labSessionID, model.RegistrationCancelled).
		Count(&count).Error
	return count, err
}

func (r *registrationRepo) Update(ctx context.Context, reg *model.Registration) error {
	return r.db.WithContext(ctx).
		Model(&model.Registration{}).
		Where("registration_id = ?", reg.RegistrationID).
		Updates(map[string]interface{}{
			"notes":        reg.Notes,
			"status":       reg.Status,
			"is_confirmed": reg.IsConfirmed,
			"confirmed_at": reg.ConfirmedAt,
			"updated_by":   reg.UpdatedBy,
			"updated_at":   time.Now(),
		}).Error
}

func (r *registrationRepo) ListBySession(ctx context.Context, labSessionID string) ([]model.Registration, error) {
	var regs []model.Registration
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("lab_session_id = ?", labSessionID).
		Order("priority ASC, created_at ASC").
		Find(&regs).Error
	return regs, err
}

func (r *registrationRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Registration, int64, error) {
	var regs []model.Registration
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Registration{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("LabSession").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&regs).Error; err != nil {
		return nil, 0, err
	}

	return regs, total, nil
}

func (r *registrationRepo) CountByStatus(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	db := r.db.WithContext(ctx).Model(&model.Registration{})
	if userID != "" {
		db = db.Where("user_id = ?", userID)
	}
	if err := db.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
