package model

import "errors"

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotExists   = errors.New("snapshot already exists")
)

// ValidationError 请求结构不合法（缺字段、格式错误），直接返回 400，不重试
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}
