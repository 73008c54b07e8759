package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// 已知设置项
const (
	SettingItemsPerPage         = "items_per_page"
	SettingRegistrationEnabled  = "registration_enabled"
	SettingCheckInGraceMinutes  = "checkin_grace_minutes"
	SettingDashboardCacheSecond = "dashboard_cache_seconds"
	SettingSiteName             = "site_name"
	SettingDefaultMaxScore      = "default_max_score"
)

type settingDef struct {
	valueType   string
	value       string
	description string
	min         float64 // 数值类设置的下限（含）
	max         float64 // 数值类设置的上限（含），0 表示不限
}

// SettingService 系统设置业务接口
//
// 设置项在首次访问时按默认值懒创建；更新时按声明类型校验。
// 类型化读取方法在读取失败时回退默认值，只用于业务内部。
type SettingService interface {
	List(ctx context.Context) ([]dto.SettingResponse, error)
	Update(ctx context.Context, key string, value interface{}, callerID, ip string) (*dto.SettingResponse, error)
	Reset(ctx context.Context, callerID, ip string) ([]dto.SettingResponse, error)

	Bool(ctx context.Context, key string) bool
	Int(ctx context.Context, key string) int
	Float(ctx context.Context, key string) float64
	String(ctx context.Context, key string) string
}

type settingService struct {
	repo     *repository.Repository
	defaults map[string]settingDef
	activity ActivityService
	logger   *zap.Logger
}

// NewSettingService 创建 SettingService 实例
func NewSettingService(cfg *config.Config, repo *repository.Repository, activity ActivityService, logger *zap.Logger) SettingService {
	return &settingService{
		repo:     repo,
		defaults: defaultSettings(cfg),
		activity: activity,
		logger:   logger,
	}
}

// defaultSettings 签到宽限期默认值取自配置 lab.checkin_grace
func defaultSettings(cfg *config.Config) map[string]settingDef {
	grace := 15
	if cfg != nil {
		grace = int(cfg.Lab.CheckInGrace / time.Minute)
	}
	return map[string]settingDef{
		SettingItemsPerPage:         {model.SettingInteger, "10", "列表默认每页数量", 1, 100},
		SettingRegistrationEnabled:  {model.SettingBoolean, "true", "是否开放实验课报名", 0, 0},
		SettingCheckInGraceMinutes:  {model.SettingInteger, strconv.Itoa(grace), "实验课结束后仍允许签到的分钟数", 0, 1440},
		SettingDashboardCacheSecond: {model.SettingInteger, "60", "仪表盘统计缓存秒数，0 表示不缓存", 0, 86400},
		SettingSiteName:             {model.SettingString, "Lab Manager", "站点名称", 0, 0},
		SettingDefaultMaxScore:      {model.SettingFloat, "100", "实验课未设置满分时的默认满分", 1, 10000},
	}
}

// ────────────────────── List ──────────────────────

func (s *settingService) List(ctx context.Context) ([]dto.SettingResponse, error) {
	settings, err := s.ensureDefaults(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]dto.SettingResponse, 0, len(settings))
	for i := range settings {
		list = append(list, toSettingResponse(&settings[i]))
	}
	return list, nil
}

// ensureDefaults 补齐缺失的设置项后返回全部设置
func (s *settingService) ensureDefaults(ctx context.Context) ([]model.SystemSetting, error) {
	existing, err := s.repo.SystemSetting.List(ctx)
	if err != nil {
		s.logger.Error("查询系统设置失败", zap.Error(err))
		return nil, storageError(err)
	}

	seen := make(map[string]bool, len(existing))
	for _, st := range existing {
		seen[st.Key] = true
	}

	var missing []model.SystemSetting
	for key, def := range s.defaults {
		if !seen[key] {
			missing = append(missing, s.newSetting(key, def, def.value, nil))
		}
	}
	if len(missing) > 0 {
		if err := s.repo.SystemSetting.Upsert(ctx, missing); err != nil {
			s.logger.Error("初始化系统设置失败", zap.Error(err))
			return nil, storageError(err)
		}
		existing = append(existing, missing...)
	}

	sort.Slice(existing, func(i, j int) bool { return existing[i].Key < existing[j].Key })
	return existing, nil
}

// ────────────────────── Update ──────────────────────

func (s *settingService) Update(ctx context.Context, key string, value interface{}, callerID, ip string) (*dto.SettingResponse, error) {
	def, ok := s.defaults[key]
	if !ok {
		return nil, apperr.NotFound("设置项", key)
	}

	normalized, err := normalizeSettingValue(def, value)
	if err != nil {
		return nil, apperr.Validation("value", err.Error())
	}

	setting := s.newSetting(key, def, normalized, &callerID)
	if err := s.repo.SystemSetting.Upsert(ctx, []model.SystemSetting{setting}); err != nil {
		s.logger.Error("更新系统设置失败", zap.String("key", key), zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{
		ActorID: callerID,
		Action:  ActionSettingChange,
		Details: fmt.Sprintf("%s=%s", key, normalized),
		IP:      ip,
	})

	resp := toSettingResponse(&setting)
	return &resp, nil
}

// ────────────────────── Reset ──────────────────────

func (s *settingService) Reset(ctx context.Context, callerID, ip string) ([]dto.SettingResponse, error) {
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

	if err := txRepo.SystemSetting.DeleteAll(ctx); err != nil {
		rollback(tx)
		s.logger.Error("清空系统设置失败", zap.Error(err))
		return nil, storageError(err)
	}

	settings := make([]model.SystemSetting, 0, len(s.defaults))
	for key, def := range s.defaults {
		settings = append(settings, s.newSetting(key, def, def.value, &callerID))
	}
	if err := txRepo.SystemSetting.Upsert(ctx, settings); err != nil {
		rollback(tx)
		s.logger.Error("写入默认设置失败", zap.Error(err))
		return nil, storageError(err)
	}

	if err := commit(tx); err != nil {
		s.logger.Error("提交事务失败", zap.Error(err))
		return nil, storageError(err)
	}

	s.activity.Record(ctx, ActivityEvent{ActorID: callerID, Action: ActionSettingReset, IP: ip})

	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	list := make([]dto.SettingResponse, 0, len(settings))
	for i := range settings {
		list = append(list, toSettingResponse(&settings[i]))
	}
	return list, nil
}

// ── 类型化读取 ──

func (s *settingService) raw(ctx context.Context, key string) string {
	def := s.defaults[key]
	st, err := s.repo.SystemSetting.Get(ctx, key)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn("读取系统设置失败，使用默认值", zap.String("key", key), zap.Error(err))
		}
		return def.value
	}
	return st.Value
}

func (s *settingService) Bool(ctx context.Context, key string) bool {
	v, err := strconv.ParseBool(s.raw(ctx, key))
	if err != nil {
		v, _ = strconv.ParseBool(s.defaults[key].value)
	}
	return v
}

func (s *settingService) Int(ctx context.Context, key string) int {
	v, err := strconv.Atoi(s.raw(ctx, key))
	if err != nil {
		v, _ = strconv.Atoi(s.defaults[key].value)
	}
	return v
}

func (s *settingService) Float(ctx context.Context, key string) float64 {
	v, err := strconv.ParseFloat(s.raw(ctx, key), 64)
	if err != nil {
		v, _ = strconv.ParseFloat(s.defaults[key].value, 64)
	}
	return v
}

func (s *settingService) String(ctx context.Context, key string) string {
	return s.raw(ctx, key)
}

// ── 内部辅助方法 ──

func (s *settingService) newSetting(key string, def settingDef, value string, callerID *string) model.SystemSetting {
	st := model.SystemSetting{
		Key:         key,
		Value:       value,
		ValueType:   def.valueType,
		Description: def.description,
	}
	st.UpdatedAt = time.Now()
	st.UpdatedBy = callerID
	return st
}

// normalizeSettingValue 按声明类型校验并转为存储用字符串
// JSON 数字解码为 float64，字符串形式的值也按类型解析
func normalizeSettingValue(def settingDef, value interface{}) (string, error) {
	switch def.valueType {
	case model.SettingBoolean:
		switch v := value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return "", fmt.Errorf("值必须为布尔类型")
			}
			return strconv.FormatBool(b), nil
		}
		return "", fmt.Errorf("值必须为布尔类型")

	case model.SettingInteger:
		f, err := toFloat(value)
		if err != nil || f != math.Trunc(f) {
			return "", fmt.Errorf("值必须为整数")
		}
		if err := checkRange(def, f); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(f), 10), nil

	case model.SettingFloat:
		f, err := toFloat(value)
		if err != nil {
			return "", fmt.Errorf("值必须为数字")
		}
		if err := checkRange(def, f); err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	default:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("值必须为字符串")
		}
		if v == "" || len([]rune(v)) > 500 {
			return "", fmt.Errorf("值长度必须在 1-500 之间")
		}
		return v, nil
	}
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", value)
}

func checkRange(def settingDef, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("值必须为有限数字")
	}
	if f < def.min || (def.max > 0 && f > def.max) {
		return fmt.Errorf("值必须在 %v-%v 之间", def.min, def.max)
	}
	return nil
}

// toSettingResponse 按 value_type 将值转换为 JSON 原生类型
func toSettingResponse(st *model.SystemSetting) dto.SettingResponse {
	var value interface{} = st.Value
	switch st.ValueType {
	case model.SettingBoolean:
		if b, err := strconv.ParseBool(st.Value); err == nil {
			value = b
		}
	case model.SettingInteger:
		if n, err := strconv.ParseInt(st.Value, 10, 64); err == nil {
			value = n
		}
	case model.SettingFloat:
		if f, err := strconv.ParseFloat(st.Value, 64); err == nil {
			value = f
		}
	}

	resp := dto.SettingResponse{
		Key:         st.Key,
		Value:       value,
		ValueType:   st.ValueType,
		Description: st.Description,
	}
	if !st.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(st.UpdatedAt)
	}
	return resp
}
