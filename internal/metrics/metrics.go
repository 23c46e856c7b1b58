package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	taskCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "tasks",
			Name:      "completions_total",
			Help:      "Total number of recorded task completions.",
		},
		[]string{"category"},
	)

	pointsAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "points",
			Name:      "awarded_total",
			Help:      "Total points credited to user accounts.",
		},
	)

	levelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "points",
			Name:      "level_ups_total",
			Help:      "Total number of level transitions.",
		},
	)

	achievementsEarned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "achievements",
			Name:      "earned_total",
			Help:      "Total number of achievements awarded.",
		},
		[]string{"category"},
	)

	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "sessions",
			Name:      "events_total",
			Help:      "Recovery session lifecycle events.",
		},
		[]string{"event"},
	)

	checkins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "checkins",
			Name:      "recorded_total",
			Help:      "Total number of mood check-ins written (inserts and updates).",
		},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recovery",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		taskCompletions,
		pointsAwarded,
		levelUps,
		achievementsEarned,
		sessionEvents,
		checkins,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTaskCompletion counts a completion and the points it credited.
func RecordTaskCompletion(category string, points int, leveledUp bool) {
	taskCompletions.WithLabelValues(labelOrUnknown(category)).Inc()
	if points > 0 {
		pointsAwarded.Add(float64(points))
	}
	if leveledUp {
		levelUps.Inc()
	}
}

// RecordAchievementEarned counts a newly awarded achievement.
func RecordAchievementEarned(category string) {
	achievementsEarned.WithLabelValues(labelOrUnknown(category)).Inc()
}

// RecordSessionEvent counts session lifecycle transitions such as "started" or "ended".
func RecordSessionEvent(event string) {
	sessionEvents.WithLabelValues(labelOrUnknown(event)).Inc()
}

// RecordCheckin counts a mood check-in write.
func RecordCheckin() {
	checkins.Inc()
}

// Middleware observes request latency per matched gin route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(
			strings.ToUpper(c.Request.Method),
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

func labelOrUnknown(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
