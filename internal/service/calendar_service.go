package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
)

// CalendarService iCalendar 订阅业务接口
type CalendarService interface {
	// UserCalendar 生成用户已报名实验课的 .ics 文本
	UserCalendar(ctx context.Context, userID string) (string, error)
}

type calendarService struct {
	repo     *repository.Repository
	baseURL  string
	timezone string
	settings SettingService
	logger   *zap.Logger
	now      func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.Config, repo *repository.Repository, settings SettingService, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:     repo,
		baseURL:  strings.TrimRight(cfg.Server.BaseURL, "/"),
		timezone: cfg.Lab.Location().String(),
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *calendarService) UserCalendar(ctx context.Context, userID string) (string, error) {
	regs, _, err := s.repo.Registration.ListByUser(ctx, userID, 0, -1)
	if err != nil {
		s.logger.Error("查询报名列表失败", zap.String("user_id", userID), zap.Error(err))
		return "", storageError(err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Lab Manager//Lab Sessions//ZH")
	cal.SetXWRCalName(s.settings.String(ctx, SettingSiteName))
	cal.SetXWRTimezone(s.timezone)

	stamp := s.now().UTC()
	for _, reg := range regs {
		if !reg.IsActive() || reg.LabSession == nil {
			continue
		}
		ls := reg.LabSession

		event := cal.AddEvent(s.eventUID(ls.LabSessionID))
		event.SetDtStampTime(stamp)
		event.SetStartAt(ls.StartTime.UTC())
		event.SetEndAt(ls.EndTime.UTC())
		event.SetSummary(ls.Title)
		if ls.Location != "" {
			event.SetLocation(ls.Location)
		}
		if ls.Description != "" {
			event.SetDescription(ls.Description)
		}
		if s.baseURL != "" {
			event.SetURL(fmt.Sprintf("%s/lab-sessions/%s", s.baseURL, ls.LabSessionID))
		}
		event.SetStatus(eventStatus(ls, &reg))
	}

	return cal.Serialize(), nil
}

// eventUID 对同一实验课生成稳定的 UID，客户端重复订阅时会覆盖而不是新增
func (s *calendarService) eventUID(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.baseURL+"/lab-sessions/"+sessionID)).String()
}

func eventStatus(ls *model.LabSession, reg *model.Registration) ics.ObjectStatus {
	switch {
	case ls.Status == model.SessionCancelled:
		return ics.ObjectStatusCancelled
	case !reg.IsConfirmed:
		return ics.ObjectStatusTentative
	default:
		return ics.ObjectStatusConfirmed
	}
}
