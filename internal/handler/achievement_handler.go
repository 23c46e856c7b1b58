package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
)

// GetPoints 返回积分与等级
func (a *API) GetPoints(c *gin.Context) {
	summary, err := a.points.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		a.handleServiceError(c, err, "获取积分失败")
		return
	}

	payload := gin.H{
		"total_points":  summary.TotalPoints,
		"current_level": summary.CurrentLevel,
		"max_level":     summary.MaxLevel,
		"next_level_at": nil,
	}
	if !summary.MaxLevel {
		payload["next_level_at"] = summary.NextLevelAt
	}
	c.JSON(http.StatusOK, payload)
}

// EvaluateAchievements 检查并发放新满足条件的成就
func (a *API) EvaluateAchievements(c *gin.Context) {
	earned, err := a.achievements.Evaluate(c.Request.Context(), currentUser(c))
	if err != nil {
		a.handleServiceError(c, err, "检查成就失败")
		return
	}

	items := make([]gin.H, 0, len(earned))
	for _, achievement := range earned {
		items = append(items, achievementToPayload(achievement))
	}
	c.JSON(http.StatusOK, gin.H{"newly_earned": items})
}

// ListAchievements 返回成就目录及获得情况
func (a *API) ListAchievements(c *gin.Context) {
	statuses, err := a.achievements.List(c.Request.Context(), currentUser(c))
	if err != nil {
		a.handleServiceError(c, err, "获取成就失败")
		return
	}

	items := make([]gin.H, 0, len(statuses))
	for _, status := range statuses {
		item := achievementToPayload(status.Achievement)
		item["earned"] = status.Earned != nil
		item["earned_date"] = nil
		if status.Earned != nil {
			item["earned_date"] = formatDate(status.Earned.EarnedDate)
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"achievements": items})
}

// AchievementStats 返回成就完成率
func (a *API) AchievementStats(c *gin.Context) {
	stats, err := a.achievements.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		a.handleServiceError(c, err, "获取成就统计失败")
		return
	}

	categories := make([]gin.H, 0, len(stats.Categories))
	for _, cat := range stats.Categories {
		categories = append(categories, gin.H{
			"category": cat.Category,
			"total":    cat.Total,
			"earned":   cat.Earned,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"total_earned":       stats.TotalEarned,
		"total_achievements": stats.TotalAchievements,
		"completion_rate":    stats.CompletionRate,
		"categories":         categories,
	})
}

func achievementToPayload(achievement db.Achievement) gin.H {
	return gin.H{
		"id":                  achievement.ID,
		"name":                achievement.Name,
		"description":         achievement.Description,
		"description_html":    renderDescription(achievement.Description),
		"icon":                achievement.Icon,
		"category":            achievement.Category,
		"points_required":     achievement.PointsRequired,
		"days_required":       achievement.DaysRequired,
		"task_count_required": achievement.TaskCountRequired,
	}
}
