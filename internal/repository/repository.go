package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User          UserRepository
	LabSession    LabSessionRepository
	Registration  RegistrationRepository
	Entry         EntryRepository
	SystemSetting SystemSettingRepository
	ActivityLog   ActivityLogRepository
	Notification  NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:            db,
		User:          NewUserRepo(db),
		LabSession:    NewLabSessionRepo(db),
		Registration:  NewRegistrationRepo(db),
		Entry:         NewEntryRepo(db),
		SystemSetting: NewSystemSettingRepo(db),
		ActivityLog:   NewActivityLogRepo(db),
		Notification:  NewNotificationRepo(db),
	}
}

// BeginTx 开启事务
// 未绑定数据库（单元测试中手工组装的聚合）时返回 nil 事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务连接的 Repository 副本；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Ping 检查数据库连接
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
