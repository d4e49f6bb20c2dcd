package mission

import (
	"errors"
	"strings"
)

var (
	// 参数无效
	ErrInvalidInput = errors.New("invalid input")
	// 任务不存在
	ErrMissionNotFound = errors.New("mission not found")
	// 任务不在进行中
	ErrMissionInactive = errors.New("mission is not active")
	// 任务已过期
	ErrMissionExpired = errors.New("mission expired")
	// 任务名额已满
	ErrMissionFull = errors.New("mission is full")
	// 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// 不是商家
	ErrNotBusiness = errors.New("user is not a business")
	// 无权审核
	ErrForbidden = errors.New("reviewer is not allowed to review this mission")
	// 已经申请过
	ErrAlreadyApplied = errors.New("already applied to this mission")
	// 参与记录不存在
	ErrParticipationNotFound = errors.New("participation not found")
	// 参与状态不允许该操作
	ErrInvalidTransition = errors.New("invalid participation status transition")
)

// 字段错误
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func (err ValidationError) Error() string {
	if len(err.Fields) == 0 {
		return err.Err.Error()
	}
	ss := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		ss = append(ss, f.Field+": "+f.Error)
	}
	return err.Err.Error() + ": " + strings.Join(ss, "; ")
}

func (err ValidationError) Unwrap() error { return err.Err }
