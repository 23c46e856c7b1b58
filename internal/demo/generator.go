// Package demo 为演示或手工测试生成一段用户的历史数据。
// 所有写入都经过 service 层，时间由可推进的时钟模拟，因此生成的数据满足与线上请求相同的约束。
package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
	"gorm.io/gorm"
)

// Options 控制生成范围
type Options struct {
	UserID uuid.UUID
	// Days 为模拟的天数，最后一天是 Today
	Days int
	// Today 由调用方的时钟给出，生成器自身不读取系统时间
	Today time.Time
	// Levels 为空时使用默认等级表
	Levels            service.LevelTable
	TaskCountCategory string
}

// Summary 汇总生成结果
type Summary struct {
	SessionID    uint
	Completions  int
	Checkins     int
	TotalPoints  int
	Level        int
	Achievements []string
}

// Generate 从 Today-Days 开始逐日模拟：开启周期、完成部分任务、打卡，最后评估成就。
// 目录需事先导入；用户已有进行中的周期时沿用该周期。
func Generate(ctx context.Context, gdb *gorm.DB, opts Options, log *logging.Logger) (*Summary, error) {
	if opts.Days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", service.ErrValidation)
	}
	if opts.UserID == uuid.Nil {
		opts.UserID = uuid.New()
	}
	if opts.Today.IsZero() {
		return nil, fmt.Errorf("%w: today is required", service.ErrValidation)
	}
	log = logging.OrNop(log).With("component", "demo", "user_id", opts.UserID)

	var addiction db.AddictionType
	if err := gdb.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").First(&addiction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no active addiction type, seed the catalog first: %w", service.ErrAddictionTypeNotFound)
		}
		return nil, err
	}

	clk := clock.NewFixed(clock.DateOf(opts.Today).AddDate(0, 0, -opts.Days))
	points := service.NewPointsService(gdb, opts.Levels, log)
	moods := service.NewMoodService(gdb, clk, log)
	sessions := service.NewSessionService(gdb, clk, moods, log)
	tasks := service.NewTaskService(gdb, clk, points, log)
	achievements := service.NewAchievementService(gdb, clk, opts.TaskCountCategory, log)

	summary := &Summary{}
	session, err := sessions.Start(ctx, opts.UserID, service.SessionInput{AddictionTypeID: addiction.ID, TargetDays: opts.Days * 2})
	switch {
	case err == nil:
		summary.SessionID = session.ID
	case errors.Is(err, service.ErrActiveSessionExists):
		current, err := sessions.Current(ctx, opts.UserID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			summary.SessionID = current.Session.ID
		}
		log.Info("reusing active session", "session_id", summary.SessionID)
	default:
		return nil, err
	}

	for day := 1; day <= opts.Days; day++ {
		clk.AdvanceDays(1)

		items, err := tasks.List(ctx, opts.UserID, service.TaskFilter{})
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			// 大约一半的任务被完成，不同日期错开
			if (day+i)%2 != 0 || item.CompletedToday {
				continue
			}
			if _, err := tasks.Complete(ctx, opts.UserID, item.ID, service.CompleteInput{}); err != nil {
				if errors.Is(err, service.ErrConflict) {
					continue
				}
				return nil, err
			}
			summary.Completions++
		}

		if _, err := sessions.Checkin(ctx, opts.UserID, service.CheckinInput{
			MoodRating: 1 + (day+2)%5,
			Notes:      fmt.Sprintf("第 %d 天", day),
		}); err != nil {
			return nil, err
		}
		summary.Checkins++
	}

	earned, err := achievements.Evaluate(ctx, opts.UserID)
	if err != nil {
		return nil, err
	}
	for _, a := range earned {
		summary.Achievements = append(summary.Achievements, a.Name)
	}

	account, err := points.Get(ctx, opts.UserID)
	if err != nil {
		return nil, err
	}
	summary.TotalPoints = account.TotalPoints
	summary.Level = account.CurrentLevel

	log.Info("demo data generated",
		"days", opts.Days,
		"completions", summary.Completions,
		"checkins", summary.Checkins,
		"total_points", summary.TotalPoints,
	)
	return summary, nil
}
