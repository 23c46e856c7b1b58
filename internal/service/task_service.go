package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxTaskListLimit        = 100
	defaultHistoryPageLimit = 20
	maxHistoryPageLimit     = 100
)

// 统计区间
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

// TaskService 负责任务完成记录与积分入账
// 同一任务每人每天只能完成一次，完成记录与积分递增在同一事务内提交
type TaskService struct {
	db     *gorm.DB
	clock  clock.Clock
	points *PointsService
	log    *logging.Logger
}

// TaskFilter 描述任务列表过滤条件
type TaskFilter struct {
	Category string
	IsDaily  *bool
	Limit    int
}

// TaskItem 是带有"今天是否已完成"标记的任务
type TaskItem struct {
	db.Task
	CompletedToday bool
}

// CompleteInput 定义完成任务时的输入；Date 为空表示今天
type CompleteInput struct {
	Date  *time.Time
	Notes string
}

// CompletionResult 返回完成记录与入账后的积分账户
type CompletionResult struct {
	Completion    db.TaskCompletion
	Account       db.PointsAccount
	PreviousLevel int
	LeveledUp     bool
}

// HistoryFilter 描述完成记录分页参数
type HistoryFilter struct {
	Page  int
	Limit int
	Date  *time.Time
}

// HistoryPage 是分页后的完成记录
type HistoryPage struct {
	Items      []db.TaskCompletion
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// CategoryStat 为单个分类的完成次数与积分
type CategoryStat struct {
	Category string
	Count    int64
	Points   int64
}

// TaskStats 为指定区间内的完成统计
type TaskStats struct {
	Period         string
	CompletedCount int64
	TotalPoints    int64
	AveragePerDay  float64
	Categories     []CategoryStat
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB, clk clock.Clock, points *PointsService, log *logging.Logger) *TaskService {
	return &TaskService{
		db:     gdb,
		clock:  clk,
		points: points,
		log:    logging.OrNop(log).With("service", "TaskService"),
	}
}

// List 返回上架中的任务，新建的排在前面，并标记今天是否已完成
func (s *TaskService) List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]TaskItem, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxTaskListLimit {
		limit = maxTaskListLimit
	}

	query := s.db.WithContext(ctx).Model(&db.Task{}).Where("is_active = ?", true)
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if filter.IsDaily != nil {
		query = query.Where("is_daily = ?", *filter.IsDaily)
	}

	var tasks []db.Task
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, storageError("list tasks", err)
	}
	if len(tasks) == 0 {
		return []TaskItem{}, nil
	}

	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}

	var doneIDs []uint
	if err := s.db.WithContext(ctx).Model(&db.TaskCompletion{}).
		Where("user_id = ? AND completed_date = ? AND task_id IN ?", userID, s.clock.Today(), ids).
		Pluck("task_id", &doneIDs).Error; err != nil {
		return nil, storageError("list today completions", err)
	}
	done := make(map[uint]struct{}, len(doneIDs))
	for _, id := range doneIDs {
		done[id] = struct{}{}
	}

	items := make([]TaskItem, 0, len(tasks))
	for _, task := range tasks {
		_, ok := done[task.ID]
		items = append(items, TaskItem{Task: task, CompletedToday: ok})
	}
	return items, nil
}

// Complete 记录一次任务完成并为用户加分
func (s *TaskService) Complete(ctx context.Context, userID uuid.UUID, taskID uint, input CompleteInput) (*CompletionResult, error) {
	date := s.clock.Today()
	if input.Date != nil && !input.Date.IsZero() {
		date = clock.DateOf(*input.Date)
	}

	var task db.Task
	if err := s.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, storageError("find task", err)
	}
	if !task.IsActive {
		return nil, ErrTaskInactive
	}

	result := &CompletionResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&db.TaskCompletion{}).
			Where("user_id = ? AND task_id = ? AND completed_date = ?", userID, task.ID, date).
			Count(&existing).Error; err != nil {
			return storageError("check completion", err)
		}
		if existing > 0 {
			return ErrTaskAlreadyCompleted
		}

		completion := db.TaskCompletion{
			UserID:        userID,
			TaskID:        task.ID,
			CompletedDate: date,
			PointsEarned:  task.Points,
			Notes:         sanitizeNotes(input.Notes),
		}
		inserted := tx.Omit("Task").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}, {Name: "completed_date"}},
			DoNothing: true,
		}).Create(&completion)
		if inserted.Error != nil {
			if isUniqueViolation(inserted.Error) {
				return ErrTaskAlreadyCompleted
			}
			return storageError("create completion", inserted.Error)
		}
		if inserted.RowsAffected == 0 {
			return ErrTaskAlreadyCompleted
		}

		account, previousLevel, err := s.points.credit(tx, userID, task.Points)
		if err != nil {
			return err
		}

		completion.Task = task
		result.Completion = completion
		result.Account = *account
		result.PreviousLevel = previousLevel
		result.LeveledUp = account.CurrentLevel > previousLevel
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTaskCompletion(task.Category, task.Points, result.LeveledUp)
	s.log.Info("task completed",
		"user_id", userID,
		"task_id", task.ID,
		"date", date.Format(clock.DateLayout),
		"points", task.Points,
		"total_points", result.Account.TotalPoints,
		"level", result.Account.CurrentLevel,
	)
	if result.LeveledUp {
		s.log.Info("level up", "user_id", userID, "from", result.PreviousLevel, "to", result.Account.CurrentLevel)
	}
	return result, nil
}

// History 按完成日期倒序分页返回完成记录，可按日期精确过滤
func (s *TaskService) History(ctx context.Context, userID uuid.UUID, filter HistoryFilter) (*HistoryPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryPageLimit
	}
	if limit > maxHistoryPageLimit {
		limit = maxHistoryPageLimit
	}

	query := s.db.WithContext(ctx).Model(&db.TaskCompletion{}).Where("user_id = ?", userID)
	if filter.Date != nil && !filter.Date.IsZero() {
		query = query.Where("completed_date = ?", clock.DateOf(*filter.Date))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, storageError("count completions", err)
	}

	var items []db.TaskCompletion
	if err := query.
		Preload("Task").
		Order("completed_date DESC, created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, storageError("list completions", err)
	}

	return &HistoryPage{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Stats 统计 period 区间内的完成情况：week 为近 7 天，month 为近 30 天，all 为全部
func (s *TaskService) Stats(ctx context.Context, userID uuid.UUID, period string) (*TaskStats, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = PeriodWeek
	}

	today := s.clock.Today()
	var since *time.Time
	switch period {
	case PeriodWeek:
		start := today.AddDate(0, 0, -6)
		since = &start
	case PeriodMonth:
		start := today.AddDate(0, 0, -29)
		since = &start
	case PeriodAll:
	default:
		return nil, ErrInvalidPeriod
	}

	scope := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("task_completions.user_id = ?", userID)
		if since != nil {
			tx = tx.Where("task_completions.completed_date >= ?", *since)
		}
		return tx
	}

	var totals struct {
		Count  int64
		Points int64
	}
	if err := s.db.WithContext(ctx).Model(&db.TaskCompletion{}).
		Scopes(scope).
		Select("COUNT(*) AS count, COALESCE(SUM(task_completions.points_earned), 0) AS points").
		Scan(&totals).Error; err != nil {
		return nil, storageError("aggregate completions", err)
	}

	stats := &TaskStats{
		Period:         period,
		CompletedCount: totals.Count,
		TotalPoints:    totals.Points,
		Categories:     []CategoryStat{},
	}
	if totals.Count == 0 {
		return stats, nil
	}

	var first db.TaskCompletion
	if err := s.db.WithContext(ctx).Model(&db.TaskCompletion{}).
		Scopes(scope).
		Order("task_completions.completed_date ASC").
		First(&first).Error; err != nil {
		return nil, storageError("find first completion", err)
	}
	days := clock.DaysBetween(first.CompletedDate, today)
	if days < 1 {
		days = 1
	}
	stats.AveragePerDay = math.Round(float64(totals.Count)/float64(days)*100) / 100

	var rows []CategoryStat
	if err := s.db.WithContext(ctx).Model(&db.TaskCompletion{}).
		Scopes(scope).
		Joins("JOIN tasks ON tasks.id = task_completions.task_id").
		Select("tasks.category AS category, COUNT(*) AS count, COALESCE(SUM(task_completions.points_earned), 0) AS points").
		Group("tasks.category").
		Order("tasks.category").
		Scan(&rows).Error; err != nil {
		return nil, storageError("aggregate categories", err)
	}
	stats.Categories = rows
	return stats, nil
}
