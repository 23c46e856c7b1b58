package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
)

type checkinPayload struct {
	MoodRating int    `json:"mood_rating" binding:"required"`
	Notes      string `json:"notes"`
}

// CreateCheckin 记录今天的心情，并刷新进行中周期的连续天数
func (a *API) CreateCheckin(c *gin.Context) {
	var payload checkinPayload
	if !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	result, err := a.sessions.Checkin(c.Request.Context(), currentUser(c), service.CheckinInput{
		MoodRating: payload.MoodRating,
		Notes:      payload.Notes,
	})
	if err != nil {
		a.handleServiceError(c, err, "打卡失败")
		return
	}

	response := gin.H{"checkin": checkinToPayload(result.Checkin), "session": nil}
	if result.Session != nil {
		response["session"] = sessionToPayload(*result.Session)
	}
	c.JSON(http.StatusOK, response)
}

// ListCheckins 返回最近的心情记录
func (a *API) ListCheckins(c *gin.Context) {
	rows, err := a.moods.History(c.Request.Context(), currentUser(c), parseIntQuery(c, "limit", 0))
	if err != nil {
		a.handleServiceError(c, err, "获取打卡记录失败")
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, checkinToPayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"checkins": items})
}

func checkinToPayload(checkin db.MoodCheckin) gin.H {
	return gin.H{
		"id":                  checkin.ID,
		"checkin_date":        formatDate(checkin.CheckinDate),
		"mood_rating":         checkin.MoodRating,
		"notes":               checkin.Notes,
		"recovery_session_id": checkin.RecoverySessionID,
	}
}
