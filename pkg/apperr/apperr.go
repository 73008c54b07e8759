// Package apperr 定义业务错误分类。
//
// 每个错误携带 Kind（决定调用方的处理方式与 HTTP 状态）、业务码、
// 以及可选的字段名/实体 ID，便于前端渲染可操作的提示。
// 相同业务码的错误通过 errors.Is 互相匹配，附加的实体信息不影响匹配。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindValidation     Kind = "validation"     // 输入不合法，不会产生任何部分状态
	KindConflict       Kind = "conflict"       // 与现有数据冲突，调用方可换一种操作
	KindState          Kind = "state"          // 实体不在允许该操作的状态窗口内
	KindAuthorization  Kind = "authorization"  // 角色层级不足，在任何写操作前拒绝
	KindNotFound       Kind = "not_found"      // 目标实体不存在
	KindInfrastructure Kind = "infrastructure" // 存储等基础设施不可用
)

// Error 结构化业务错误
type Error struct {
	Kind     Kind
	Code     int
	Message  string
	Field    string
	EntityID string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.EntityID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.EntityID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按业务码匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithEntity 返回附带实体 ID 的副本
func (e *Error) WithEntity(id string) *Error {
	cp := *e
	cp.EntityID = id
	return &cp
}

// WithField 返回附带字段名的副本
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// Wrap 返回包装底层错误的副本
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建业务错误
func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// ── 通用错误 ──

var (
	ErrValidation     = New(KindValidation, 10001, "参数校验失败")
	ErrForbidden      = New(KindAuthorization, 10003, "无权限访问")
	ErrNotFound       = New(KindNotFound, 10004, "资源不存在")
	ErrOptimisticLock = New(KindConflict, 10009, "数据已被其他操作修改，请刷新后重试")
	ErrUnavailable    = New(KindInfrastructure, 50300, "服务暂不可用，请稍后重试")
)

// ── 账号 ──

var (
	ErrUsernameTaken = New(KindConflict, 11002, "用户名已被使用")
	ErrEmailTaken    = New(KindConflict, 11003, "邮箱已被使用")
)

// ── 角色层级 ──

var (
	ErrInsufficientRole = New(KindAuthorization, 12001, "角色层级不足")
	ErrSelfRoleChange   = New(KindAuthorization, 12002, "不能修改自己的角色")
	ErrUnknownRole      = New(KindValidation, 12003, "未知角色")
	ErrSelfDelete       = New(KindAuthorization, 12004, "不能删除自己")
	ErrSelfDeactivate   = New(KindAuthorization, 12005, "不能停用自己的账号")
)

// ── 实验课生命周期 ──

var (
	ErrInvalidSessionTime      = New(KindValidation, 20001, "开始时间必须早于结束时间")
	ErrInvalidStatusTransition = New(KindState, 20002, "实验课状态不允许该变更")
	ErrInvalidVerificationFmt  = New(KindValidation, 20003, "签到码必须为 6 位大写字母或数字")

	ErrRegistrationClosed    = New(KindState, 21001, "该实验课当前不接受报名")
	ErrDuplicateRegistration = New(KindConflict, 21002, "已报名该实验课")
	ErrSessionFull           = New(KindConflict, 21003, "实验课名额已满")
	ErrRegistrationLocked    = New(KindState, 21004, "实验课已结束，报名记录不可再修改")
	ErrAlreadyCheckedIn      = New(KindState, 21005, "已签到，不能取消报名")
	ErrRegistrationCancelled = New(KindState, 21006, "报名已取消")
	ErrRegistrationStatus    = New(KindState, 21007, "报名状态只能在已报名与缺席之间切换")

	ErrNotRegistered           = New(KindState, 22001, "未报名该实验课")
	ErrSessionNotInProgress    = New(KindState, 22002, "实验课未在进行中")
	ErrInvalidVerificationCode = New(KindValidation, 22003, "签到码错误")
	ErrSessionAlreadyEnded     = New(KindState, 22004, "实验结果已提交，不可修改")
	ErrEntryOutsideWindow      = New(KindState, 22005, "不在允许签到的时间范围内")
	ErrEntryNotSubmitted       = New(KindState, 22006, "实验结果尚未提交，无法评分")
	ErrScoreOutOfRange         = New(KindValidation, 22007, "分数超出允许范围")
)

// Validation 创建字段级校验错误
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: ErrValidation.Code, Message: message, Field: field}
}

// NotFound 创建实体不存在错误
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Code: ErrNotFound.Code, Message: entity + "不存在", EntityID: id}
}

// Infrastructure 包装基础设施错误
func Infrastructure(err error) *Error {
	return ErrUnavailable.Wrap(err)
}

// As 提取 *Error；非业务错误返回 nil
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf 返回错误类别；非业务错误返回空字符串
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return ""
}
