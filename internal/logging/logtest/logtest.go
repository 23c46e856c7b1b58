// Package logtest 提供把日志记录在内存中的 Logger，供测试断言日志内容。
package logtest

import (
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// New 返回记录 level 及以上日志的 Logger 和对应的观察器。
func New(level zapcore.Level) (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logging.FromZap(zap.New(core)), logs
}
