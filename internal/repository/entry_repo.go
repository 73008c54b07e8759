package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// EntryRepository 签到记录数据访问接口
type EntryRepository interface {
	Create(ctx context.Context, entry *model.Entry) error
	GetByID(ctx context.Context, id string) (*model.Entry, error)
	GetByUserAndSession(ctx context.Context, userID, labSessionID string) (*model.Entry, error)
	Update(ctx context.Context, entry *model.Entry) error
	// Close 写入结果并定格 exit_time；已定格的记录返回 apperr.ErrSessionAlreadyEnded
	Close(ctx context.Context, entry *model.Entry) error
	ListBySession(ctx context.Context, labSessionID string) ([]model.Entry, error)
	// ListByUser limit 为 -1 时不分页
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Entry, int64, error)
	CountBySubmissionStatus(ctx context.Context) (map[string]int64, error)
}

type entryRepo struct {
	db *gorm.DB
}

// NewEntryRepo 创建 EntryRepository 实例
func NewEntryRepo(db *gorm.DB) EntryRepository {
	return &entryRepo{db: db}
}

func (r *entryRepo) Create(ctx context.Context, entry *model.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *entryRepo) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepo) GetByUserAndSession(ctx context.Context, userID, labSessionID string) (*model.Entry, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lab_session_id = ?", userID, labSessionID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepo) Update(ctx context.Context, entry *model.Entry) error {
	return r.db.WithContext(ctx).
		Model(&model.Entry{}).
		Where("entry_id = ?", entry.EntryID).
		Updates(map[string]interface{}{
			"exit_time":         entry.ExitTime,
			"result":            entry.Result,
			"score":             entry.Score,
			"teacher_comment":   entry.TeacherComment,
			"submission_status": entry.SubmissionStatus,
			"graded_by":         entry.GradedBy,
			"graded_at":         entry.GradedAt,
			"updated_at":        time.Now(),
		}).Error
}

func (r *entryRepo) Close(ctx context.Context, entry *model.Entry) error {
	result := r.db.WithContext(ctx).
		Model(&model.Entry{}).
		Where("entry_id = ? AND exit_time IS NULL", entry.EntryID).
		Updates(map[string]interface{}{
			"exit_time":         entry.ExitTime,
			"result":            entry.Result,
			"submission_status": entry.SubmissionStatus,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrSessionAlreadyEnded.WithEntity(entry.EntryID)
	}
	return nil
}

func (r *entryRepo) ListBySession(ctx context.Context, labSessionID string) ([]model.Entry, error) {
	var entries []model.Entry
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("lab_session_id = ?", labSessionID).
		Order("entry_time ASC").
		Find(&entries).Error
	return entries, err
}

func (r *entryRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Entry, int64, error) {
	var entries []model.Entry
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Entry{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("LabSession").
		Offset(offset).Limit(limit).
		Order("entry_time DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *entryRepo) CountBySubmissionStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SubmissionStatus string
		Count            int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Entry{}).
		Select("submission_status, COUNT(*) AS count").
		Group("submission_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.SubmissionStatus] = row.Count
	}
	return result, nil
}
