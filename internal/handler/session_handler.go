package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
)

type startSessionPayload struct {
	AddictionTypeID uint   `json:"addiction_type_id" binding:"required"`
	TargetDays      int    `json:"target_days"`
	Notes           string `json:"notes"`
}

type endSessionPayload struct {
	Notes string `json:"notes"`
}

// GetCurrentSession 返回进行中的戒断周期，没有时 session 为 null
func (a *API) GetCurrentSession(c *gin.Context) {
	view, err := a.sessions.Current(c.Request.Context(), currentUser(c))
	if err != nil {
		a.handleServiceError(c, err, "获取当前周期失败")
		return
	}
	if view == nil {
		c.JSON(http.StatusOK, gin.H{"session": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionViewToPayload(*view)})
}

// ListSessions 返回用户的历史周期
func (a *API) ListSessions(c *gin.Context) {
	views, err := a.sessions.History(c.Request.Context(), currentUser(c), parseIntQuery(c, "limit", 0))
	if err != nil {
		a.handleServiceError(c, err, "获取周期列表失败")
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, view := range views {
		items = append(items, sessionViewToPayload(view))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": items})
}

// StartSession 开启新的戒断周期
func (a *API) StartSession(c *gin.Context) {
	var payload startSessionPayload
	if !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	session, err := a.sessions.Start(c.Request.Context(), currentUser(c), service.SessionInput{
		AddictionTypeID: payload.AddictionTypeID,
		TargetDays:      payload.TargetDays,
		Notes:           payload.Notes,
	})
	if err != nil {
		a.handleServiceError(c, err, "开启周期失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sessionViewToPayload(service.SessionView{
		Session:  *session,
		Progress: service.ComputeProgress(0, session.TargetDays),
	})})
}

// EndSession 结束指定周期
func (a *API) EndSession(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的周期ID")
		return
	}

	var payload endSessionPayload
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	session, err := a.sessions.End(c.Request.Context(), currentUser(c), id, payload.Notes)
	if err != nil {
		a.handleServiceError(c, err, "结束周期失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionToPayload(*session)})
}

func sessionToPayload(session db.RecoverySession) gin.H {
	return gin.H{
		"id":                session.ID,
		"addiction_type_id": session.AddictionTypeID,
		"start_date":        formatDate(session.StartDate),
		"end_date":          formatOptionalDate(session.EndDate),
		"is_active":         session.IsActive,
		"target_days":       session.TargetDays,
		"current_streak":    session.CurrentStreak,
		"longest_streak":    session.LongestStreak,
		"notes":             session.Notes,
	}
}

func sessionViewToPayload(view service.SessionView) gin.H {
	item := sessionToPayload(view.Session)
	item["elapsed_days"] = view.ElapsedDays
	item["progress"] = view.Progress
	return item
}
