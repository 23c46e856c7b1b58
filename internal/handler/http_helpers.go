package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
)

// UserHeader 由上游认证代理注入，携带当前用户 ID
const UserHeader = "X-User-ID"

const userContextKey = "__user_id"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseDateQuery 解析可选的 2006-01-02 日期参数，缺省时返回 nil
func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := clock.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &parsed, nil
}

// RequireUser 校验 X-User-ID 并写入上下文，缺失或格式错误时返回 401
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(UserHeader))
		userID, err := uuid.Parse(raw)
		if raw == "" || err != nil || userID == uuid.Nil {
			respondError(c, http.StatusUnauthorized, "未识别的用户")
			c.Abort()
			return
		}
		c.Set(userContextKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) uuid.UUID {
	if value, ok := c.Get(userContextKey); ok {
		if id, ok := value.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// handleServiceError 把业务错误映射为状态码，未知错误记录日志后返回 500
func (a *API) handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, messageFor(err, fallback))
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidState):
		respondError(c, http.StatusConflict, messageFor(err, fallback))
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, messageFor(err, fallback))
	default:
		a.log.Error("request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func messageFor(err error, fallback string) string {
	switch {
	case errors.Is(err, service.ErrAddictionTypeNotFound):
		return "戒断类型不存在"
	case errors.Is(err, service.ErrSessionNotFound):
		return "戒断周期不存在"
	case errors.Is(err, service.ErrActiveSessionExists):
		return "已有进行中的戒断周期"
	case errors.Is(err, service.ErrSessionAlreadyEnded):
		return "戒断周期已结束"
	case errors.Is(err, service.ErrTaskNotFound):
		return "任务不存在"
	case errors.Is(err, service.ErrTaskInactive):
		return "任务已下线"
	case errors.Is(err, service.ErrTaskAlreadyCompleted):
		return "今天已完成该任务"
	case errors.Is(err, service.ErrInvalidMoodRating):
		return "心情评分需在 1-5 之间"
	case errors.Is(err, service.ErrInvalidTargetDays):
		return "目标天数无效"
	case errors.Is(err, service.ErrInvalidPeriod):
		return "统计区间仅支持 week、month、all"
	}
	return fallback
}

func formatDate(t time.Time) string {
	return t.Format(clock.DateLayout)
}

func formatOptionalDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}
