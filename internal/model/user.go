package model

import "time"

// 角色（层级：system_admin ⊇ admin ⊇ user）
const (
	RoleUser        = "user"
	RoleAdmin       = "admin"
	RoleSystemAdmin = "system_admin"
)

// User 用户表 — 对应 users
type User struct {
	UserID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string     `gorm:"type:varchar(64);not null"                      json:"username"`
	Email        string     `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null"                     json:"-"`
	FullName     string     `gorm:"type:varchar(100);not null;default:''"          json:"full_name"`
	Role         string     `gorm:"type:varchar(20);not null;default:'user'"       json:"role"`
	IsActive     bool       `gorm:"not null;default:true"                          json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
