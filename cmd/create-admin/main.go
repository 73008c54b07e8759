// create-admin 初始化首个 system_admin 账号
//
// 用法:
//
//	LAB_ADMIN_PASSWORD=... go run ./cmd/create-admin -username root -email root@example.com
//
// 用户名已存在时将其提升为 system_admin 并重置密码。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/database"
	applogger "github.com/HUYVESEA0/Lab-Manager-sub000/pkg/logger"
)

const minPasswordLen = 8

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	username := flag.String("username", "admin", "管理员用户名")
	email := flag.String("email", "", "管理员邮箱")
	fullName := flag.String("full-name", "System Administrator", "管理员姓名")
	flag.Parse()

	password := os.Getenv("LAB_ADMIN_PASSWORD")
	if err := validateInput(*username, *email, password); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewRepository(db)
	user, created, err := upsertAdmin(ctx, repo.User, *username, *email, *fullName, password)
	if err != nil {
		logger.Fatal("创建管理员失败", zap.Error(err))
	}

	if created {
		logger.Info("已创建 system_admin", zap.String("user_id", user.UserID), zap.String("username", user.Username))
	} else {
		logger.Info("已将现有用户提升为 system_admin", zap.String("user_id", user.UserID), zap.String("username", user.Username))
	}
}

func validateInput(username, email, password string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("-username 不能为空")
	}
	if !strings.Contains(email, "@") {
		return errors.New("-email 必须是有效邮箱")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("环境变量 LAB_ADMIN_PASSWORD 长度不能少于 %d 字符", minPasswordLen)
	}
	return nil
}

// upsertAdmin 按用户名查找，存在则提升角色并重置密码，否则新建
func upsertAdmin(ctx context.Context, users repository.UserRepository, username, email, fullName, password string) (*model.User, bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("密码哈希失败: %w", err)
	}

	existing, err := users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		existing.Role = model.RoleSystemAdmin
		existing.IsActive = true
		existing.PasswordHash = string(hash)
		if err := users.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, false, err
	}

	user := &model.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         model.RoleSystemAdmin,
		IsActive:     true,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}
