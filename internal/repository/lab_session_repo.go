package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// LabSessionListFilters 实验课列表筛选条件
type LabSessionListFilters struct {
	Status     string
	Keyword    string // 匹配标题、地点
	From       *time.Time
	To         *time.Time
	ActiveOnly bool
}

// LabSessionRepository 实验课数据访问接口
type LabSessionRepository interface {
	Create(ctx context.Context, session *model.LabSession) error
	GetByID(ctx context.Context, id string) (*model.LabSession, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定实验课行，串行化同一实验课的报名
	// 必须在已有事务的 *gorm.DB 上调用（通过 Repository.WithTx 注入事务连接）
	GetByIDForUpdate(ctx context.Context, id string) (*model.LabSession, error)
	Update(ctx context.Context, session *model.LabSession) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters *LabSessionListFilters, offset, limit int) ([]model.LabSession, int64, error)
	// ListInRange 按 (日期, 开始时间) 升序返回区间内的实验课；from/to 为 nil 表示不限
	ListInRange(ctx context.Context, from, to *time.Time) ([]model.LabSession, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type labSessionRepo struct {
	db *gorm.DB
}

// NewLabSessionRepo 创建 LabSessionRepository 实例
func NewLabSessionRepo(db *gorm.DB) LabSessionRepository {
	return &labSessionRepo{db: db}
}

func (r *labSessionRepo) Create(ctx context.Context, session *model.LabSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *labSessionRepo) GetByID(ctx context.Context, id string) (*model.LabSession, error) {
	var session model.LabSession
	err := r.db.WithContext(ctx).
		Where("lab_session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *labSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.LabSession, error) {
	var session model.LabSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lab_session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Update 基于 version 的乐观锁更新
func (r *labSessionRepo) Update(ctx context.Context, session *model.LabSession) error {
	oldVersion := session.Version
	result := r.db.WithContext(ctx).
		Model(&model.LabSession{}).
		Where("lab_session_id = ? AND version = ?", session.LabSessionID, oldVersion).
		Updates(map[string]interface{}{
			"title":                   session.Title,
			"description":             session.Description,
			"session_date":            session.Date,
			"start_time":              session.StartTime,
			"end_time":                session.EndTime,
			"location":                session.Location,
			"max_participants":        session.MaxParticipants,
			"is_active":               session.IsActive,
			"verification_code":       session.VerificationCode,
			"status":                  session.Status,
			"allow_late_registration": session.AllowLateRegistration,
			"auto_approve":            session.AutoApprove,
			"tags":                    session.Tags,
			"difficulty":              session.Difficulty,
			"equipment":               session.Equipment,
			"max_score":               session.MaxScore,
			"time_limit_minutes":      session.TimeLimitMinutes,
			"updated_by":              session.UpdatedBy,
			"updated_at":              time.Now(),
			"version":                 oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrOptimisticLock.WithEntity(session.LabSessionID)
	}
	session.Version = oldVersion + 1
	return nil
}

// Delete 硬删除，报名与签到记录由外键级联删除
func (r *labSessionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("lab_session_id = ?", id).
		Delete(&model.LabSession{}).Error
}

func (r *labSessionRepo) List(ctx context.Context, filters *LabSessionListFilters, offset, limit int) ([]model.LabSession, int64, error) {
	var sessions []model.LabSession
	var total int64

	db := r.db.WithContext(ctx).Model(&model.LabSession{})
	if filters != nil {
		if filters.Status != "" {
			db = db.Where("status = ?", filters.Status)
		}
		if filters.Keyword != "" {
			kw := "%" + filters.Keyword + "%"
			db = db.Where("title ILIKE ? OR location ILIKE ?", kw, kw)
		}
		if filters.From != nil {
			db = db.Where("start_time >= ?", *filters.From)
		}
		if filters.To != nil {
			db = db.Where("start_time < ?", *filters.To)
		}
		if filters.ActiveOnly {
			db = db.Where("is_active = ?", true)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("session_date ASC, start_time ASC").
		Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (r *labSessionRepo) ListInRange(ctx context.Context, from, to *time.Time) ([]model.LabSession, error) {
	var sessions []model.LabSession
	db := r.db.WithContext(ctx)
	if from != nil {
		db = db.Where("start_time >= ?", *from)
	}
	if to != nil {
		db = db.Where("start_time < ?", *to)
	}
	err := db.Order("session_date ASC, start_time ASC").Find(&sessions).Error
	return sessions, err
}

func (r *labSessionRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.LabSession{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
