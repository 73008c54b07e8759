// Package lifecycle 实验课生命周期规则。
//
// 本包只包含纯函数：不访问数据库、不读取系统时钟，所有时间相关判断
// 都由调用方传入 now。报名、签到、提交、评分与状态流转的前置条件
// 集中在这里，Service 层负责加载实体、持久化结果与发出事件。
package lifecycle

import (
	"time"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// CanRegister 判断实验课当前是否接受报名
// 允许迟报名时截止到结束时间，否则截止到开始时间（均为开区间）
func CanRegister(s *model.LabSession, now time.Time) bool {
	if !s.IsActive || s.Status != model.SessionScheduled {
		return false
	}
	if s.AllowLateRegistration {
		return now.Before(s.EndTime)
	}
	return now.Before(s.StartTime)
}

// Register 校验报名前置条件并构造报名记录
//
// existing 为该用户在该实验课上未取消的报名（没有则为 nil），
// activeCount 为该实验课当前未取消的报名数。名额是硬上限。
func Register(userID string, s *model.LabSession, existing *model.Registration, activeCount int64, notes string, now time.Time) (*model.Registration, error) {
	if !CanRegister(s, now) {
		return nil, apperr.ErrRegistrationClosed.WithEntity(s.LabSessionID)
	}
	if existing != nil && existing.IsActive() {
		return nil, apperr.ErrDuplicateRegistration.WithEntity(existing.RegistrationID)
	}
	if activeCount >= int64(s.MaxParticipants) {
		return nil, apperr.ErrSessionFull.WithEntity(s.LabSessionID)
	}

	reg := &model.Registration{
		UserID:       userID,
		LabSessionID: s.LabSessionID,
		Notes:        notes,
		Status:       model.RegistrationRegistered,
		Priority:     int(activeCount) + 1,
		IsConfirmed:  s.AutoApprove,
	}
	if s.AutoApprove {
		confirmedAt := now
		reg.ConfirmedAt = &confirmedAt
	}
	return reg, nil
}

// IsOngoing 判断实验课是否正在进行
// 需要时间窗口已到且状态已被显式切换为 ongoing，仅时间到达不算进行中
func IsOngoing(s *model.LabSession, now time.Time) bool {
	return s.Status == model.SessionOngoing &&
		!now.Before(s.StartTime) &&
		!now.After(s.EndTime)
}

// CheckIn 校验签到并构造签到记录
//
// 已存在签到记录时直接返回该记录（created=false），不再校验签到码。
// 新签到会把 registration 状态改为 attended，调用方负责持久化两者。
func CheckIn(userID string, s *model.LabSession, reg *model.Registration, existing *model.Entry, code string, grace time.Duration, now time.Time) (entry *model.Entry, created bool, err error) {
	if !IsOngoing(s, now) {
		return nil, false, apperr.ErrSessionNotInProgress.WithEntity(s.LabSessionID)
	}
	if reg == nil || !reg.IsActive() || reg.UserID != userID || reg.LabSessionID != s.LabSessionID {
		return nil, false, apperr.ErrNotRegistered.WithEntity(s.LabSessionID)
	}
	if existing != nil {
		return existing, false, nil
	}
	if !MatchVerificationCode(s.VerificationCode, code) {
		return nil, false, apperr.ErrInvalidVerificationCode.WithField("verification_code")
	}
	if !WithinEntryWindow(s, grace, now) {
		return nil, false, apperr.ErrEntryOutsideWindow.WithEntity(s.LabSessionID)
	}

	regID := reg.RegistrationID
	entry = &model.Entry{
		UserID:           userID,
		LabSessionID:     s.LabSessionID,
		RegistrationID:   &regID,
		EntryTime:        now,
		SubmissionStatus: model.SubmissionNotSubmitted,
	}
	reg.Status = model.RegistrationAttended
	return entry, true, nil
}

// WithinEntryWindow entry_time 必须落在 [start, end+grace] 内
func WithinEntryWindow(s *model.LabSession, grace time.Duration, t time.Time) bool {
	return !t.Before(s.StartTime) && !t.After(s.EndTime.Add(grace))
}

// SubmitResult 提交实验结果；exit_time 一旦写入即定格
func SubmitResult(e *model.Entry, payload []byte, now time.Time) error {
	if e.IsClosed() {
		return apperr.ErrSessionAlreadyEnded.WithEntity(e.EntryID)
	}
	if len(payload) == 0 {
		return apperr.Validation("result", "实验结果不能为空")
	}

	exit := now
	e.Result = append([]byte(nil), payload...)
	e.ExitTime = &exit
	e.SubmissionStatus = model.SubmissionSubmitted
	return nil
}

// Grade 管理员评分；没有时间限制，可重复评分覆盖
// maxScore 为 nil 时只要求分数非负
func Grade(e *model.Entry, score float64, comment, graderID string, maxScore *float64, now time.Time) error {
	if e.SubmissionStatus == model.SubmissionNotSubmitted {
		return apperr.ErrEntryNotSubmitted.WithEntity(e.EntryID)
	}
	if score < 0 || (maxScore != nil && score > *maxScore) {
		return apperr.ErrScoreOutOfRange.WithField("score")
	}

	gradedAt := now
	e.Score = &score
	e.TeacherComment = comment
	e.SubmissionStatus = model.SubmissionGraded
	e.GradedBy = &graderID
	e.GradedAt = &gradedAt
	return nil
}

// allowedTransitions 状态机的合法边；completed 与 cancelled 为终态
var allowedTransitions = map[string][]string{
	model.SessionScheduled: {model.SessionOngoing, model.SessionCancelled},
	model.SessionOngoing:   {model.SessionCompleted, model.SessionCancelled},
}

// CanTransition 判断状态变更是否合法
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 执行实验课状态变更
// 开始实验课要求实验课处于启用状态
func Transition(s *model.LabSession, to string) error {
	if !CanTransition(s.Status, to) {
		return apperr.ErrInvalidStatusTransition.WithEntity(s.LabSessionID)
	}
	if to == model.SessionOngoing && !s.IsActive {
		return apperr.ErrInvalidStatusTransition.WithEntity(s.LabSessionID)
	}
	s.Status = to
	return nil
}

// CanMutateRegistration 实验课结束后报名记录不可再修改
func CanMutateRegistration(s *model.LabSession, now time.Time) bool {
	return !now.After(s.EndTime)
}

// ValidateSchedule 校验实验课时间与名额
func ValidateSchedule(start, end time.Time, maxParticipants int) error {
	if !start.Before(end) {
		return apperr.ErrInvalidSessionTime.WithField("end_time")
	}
	if maxParticipants <= 0 {
		return apperr.Validation("max_participants", "人数上限必须大于 0")
	}
	return nil
}
