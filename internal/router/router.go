package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/handler"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/metrics"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, log *logging.Logger) *gin.Engine {
	log = logging.OrNop(log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())
	r.Use(requestLogger(log.With("component", "http")))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := r.Group("/api")
	apiGroup.Use(handler.RequireUser())
	{
		apiGroup.GET("/sessions/current", api.GetCurrentSession)
		apiGroup.GET("/sessions", api.ListSessions)
		apiGroup.POST("/sessions", api.StartSession)
		apiGroup.POST("/sessions/:id/end", api.EndSession)

		apiGroup.POST("/checkins", api.CreateCheckin)
		apiGroup.GET("/checkins", api.ListCheckins)

		apiGroup.GET("/tasks", api.ListTasks)
		apiGroup.GET("/tasks/history", api.TaskHistory)
		apiGroup.GET("/tasks/stats", api.TaskStats)
		apiGroup.POST("/tasks/:id/complete", api.CompleteTask)

		apiGroup.GET("/points", api.GetPoints)

		apiGroup.GET("/achievements", api.ListAchievements)
		apiGroup.GET("/achievements/stats", api.AchievementStats)
		apiGroup.POST("/achievements/evaluate", api.EvaluateAchievements)
	}

	return r
}

// requestLogger 以结构化日志记录每个请求，5xx 记为 Error
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http request", fields...)
		case c.Request.URL.Path == "/ping" || c.Request.URL.Path == "/metrics":
			log.Debug("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
