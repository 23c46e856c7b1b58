package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
)

type completeTaskPayload struct {
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

// ListTasks 返回任务列表，可按 category 与 is_daily 过滤
func (a *API) ListTasks(c *gin.Context) {
	filter := service.TaskFilter{
		Category: c.Query("category"),
		Limit:    parseIntQuery(c, "limit", 0),
	}
	if raw := strings.TrimSpace(c.Query("is_daily")); raw != "" {
		daily, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "is_daily 参数无效")
			return
		}
		filter.IsDaily = &daily
	}

	items, err := a.tasks.List(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		a.handleServiceError(c, err, "获取任务列表失败")
		return
	}

	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		entry := taskToPayload(item.Task)
		entry["completed_today"] = item.CompletedToday
		payload = append(payload, entry)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": payload})
}

// CompleteTask 完成任务并入账积分
func (a *API) CompleteTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	var payload completeTaskPayload
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	input := service.CompleteInput{Notes: payload.Notes}
	if raw := strings.TrimSpace(payload.Date); raw != "" {
		parsed, err := clock.ParseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
			return
		}
		input.Date = &parsed
	}

	result, err := a.tasks.Complete(c.Request.Context(), currentUser(c), id, input)
	if err != nil {
		a.handleServiceError(c, err, "完成任务失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"completion": completionToPayload(result.Completion),
		"points": gin.H{
			"total_points":  result.Account.TotalPoints,
			"current_level": result.Account.CurrentLevel,
			"leveled_up":    result.LeveledUp,
		},
	})
}

// TaskHistory 分页返回完成记录
func (a *API) TaskHistory(c *gin.Context) {
	date, err := parseDateQuery(c, "date")
	if err != nil {
		respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
		return
	}

	page, err := a.tasks.History(c.Request.Context(), currentUser(c), service.HistoryFilter{
		Page:  parseIntQuery(c, "page", 1),
		Limit: parseIntQuery(c, "limit", 0),
		Date:  date,
	})
	if err != nil {
		a.handleServiceError(c, err, "获取完成记录失败")
		return
	}

	items := make([]gin.H, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, completionToPayload(item))
	}
	c.JSON(http.StatusOK, gin.H{
		"completions": items,
		"pagination": gin.H{
			"page":        page.Page,
			"limit":       page.Limit,
			"total":       page.Total,
			"total_pages": page.TotalPages,
		},
	})
}

// TaskStats 返回完成统计
func (a *API) TaskStats(c *gin.Context) {
	stats, err := a.tasks.Stats(c.Request.Context(), currentUser(c), c.DefaultQuery("period", service.PeriodWeek))
	if err != nil {
		a.handleServiceError(c, err, "获取任务统计失败")
		return
	}

	categories := make([]gin.H, 0, len(stats.Categories))
	for _, cat := range stats.Categories {
		categories = append(categories, gin.H{
			"category": cat.Category,
			"count":    cat.Count,
			"points":   cat.Points,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"period":          stats.Period,
		"completed_count": stats.CompletedCount,
		"total_points":    stats.TotalPoints,
		"average_per_day": stats.AveragePerDay,
		"categories":      categories,
	})
}

func taskToPayload(task db.Task) gin.H {
	return gin.H{
		"id":               task.ID,
		"title":            task.Title,
		"description":      task.Description,
		"description_html": renderDescription(task.Description),
		"points":           task.Points,
		"is_daily":         task.IsDaily,
		"category":         task.Category,
		"difficulty_level": task.DifficultyLevel,
	}
}

func completionToPayload(completion db.TaskCompletion) gin.H {
	item := gin.H{
		"id":             completion.ID,
		"task_id":        completion.TaskID,
		"completed_date": formatDate(completion.CompletedDate),
		"points_earned":  completion.PointsEarned,
		"notes":          completion.Notes,
	}
	if completion.Task.ID != 0 {
		item["task"] = taskToPayload(completion.Task)
	}
	return item
}
