package allocator

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("偏好数据校验失败")
	ErrTerminated = errors.New("退火过程已经结束，不能重复运行")
)

// ValidationError 表示输入的偏好数据不完整或者不合法，在构造阶段直接返回给调用者，不做重试
type ValidationError struct {
	Reason string
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
