package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// 错误分类：调用方可据此映射状态码。NotFound/Conflict/InvalidState/Validation 均不会修改任何状态。
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrStorage      = errors.New("storage error")
)

var (
	// ErrAddictionTypeNotFound 在戒断类型不存在或已停用时返回
	ErrAddictionTypeNotFound = fmt.Errorf("addiction type %w", ErrNotFound)
	// ErrSessionNotFound 在周期不存在或不属于当前用户时返回
	ErrSessionNotFound = fmt.Errorf("recovery session %w", ErrNotFound)
	// ErrActiveSessionExists 在用户已有进行中的周期时返回
	ErrActiveSessionExists = fmt.Errorf("%w: active recovery session already exists", ErrConflict)
	// ErrSessionAlreadyEnded 在结束一个已结束的周期时返回
	ErrSessionAlreadyEnded = fmt.Errorf("%w: recovery session already ended", ErrInvalidState)
	// ErrTaskNotFound 在任务不存在时返回
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)
	// ErrTaskInactive 在任务已下线时返回
	ErrTaskInactive = fmt.Errorf("%w: task is inactive", ErrInvalidState)
	// ErrTaskAlreadyCompleted 在同一任务当天已完成时返回
	ErrTaskAlreadyCompleted = fmt.Errorf("%w: task already completed on this date", ErrConflict)
	// ErrInvalidMoodRating 在心情评分不在 1-5 之间时返回
	ErrInvalidMoodRating = fmt.Errorf("%w: mood rating must be between 1 and 5", ErrValidation)
	// ErrInvalidTargetDays 在目标天数为负时返回
	ErrInvalidTargetDays = fmt.Errorf("%w: target days must be positive", ErrValidation)
	// ErrInvalidPeriod 在统计区间不受支持时返回
	ErrInvalidPeriod = fmt.Errorf("%w: period must be week, month or all", ErrValidation)
)

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// isUniqueViolation 识别唯一约束冲突；TranslateError 未生效时退回到按错误信息判断。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
