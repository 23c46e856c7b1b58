package handler

import (
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
	"gorm.io/gorm"
)

// Options 汇总构造 API 所需的运行时配置。
type Options struct {
	Clock             clock.Clock
	Levels            service.LevelTable
	TaskCountCategory string
	Logger            *logging.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db           *gorm.DB
	clock        clock.Clock
	sessions     *service.SessionService
	tasks        *service.TaskService
	points       *service.PointsService
	achievements *service.AchievementService
	moods        *service.MoodService
	log          *logging.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New(nil)
	}
	log := logging.OrNop(opts.Logger)

	points := service.NewPointsService(gdb, opts.Levels, log)
	moods := service.NewMoodService(gdb, clk, log)

	return &API{
		db:           gdb,
		clock:        clk,
		sessions:     service.NewSessionService(gdb, clk, moods, log),
		tasks:        service.NewTaskService(gdb, clk, points, log),
		points:       points,
		achievements: service.NewAchievementService(gdb, clk, opts.TaskCountCategory, log),
		moods:        moods,
		log:          log.With("component", "handler"),
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
