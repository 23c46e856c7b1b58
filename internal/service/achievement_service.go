package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTaskCountCategory 是按完成任务数解锁的成就分类标记
const DefaultTaskCountCategory = "tasks"

// RuleKind 标识成就规则种类
type RuleKind string

const (
	RulePointsThreshold    RuleKind = "points_threshold"
	RuleStreakThreshold    RuleKind = "streak_threshold"
	RuleTaskCountThreshold RuleKind = "task_count_threshold"
)

// Snapshot 是评估成就时读取的用户状态
type Snapshot struct {
	TotalPoints        int
	HasActiveSession   bool
	CurrentStreak      int
	CompletedTaskCount int64
}

// Rule 是单条解锁规则，一个成就可对应多条规则，满足任意一条即解锁
type Rule interface {
	Kind() RuleKind
	Satisfied(snap Snapshot) bool
}

// PointsThreshold 要求累计积分达到 Points
type PointsThreshold struct{ Points int }

func (PointsThreshold) Kind() RuleKind { return RulePointsThreshold }

func (r PointsThreshold) Satisfied(snap Snapshot) bool {
	return snap.TotalPoints >= r.Points
}

// StreakThreshold 要求存在进行中的周期且连续天数达到 Days
type StreakThreshold struct{ Days int }

func (StreakThreshold) Kind() RuleKind { return RuleStreakThreshold }

func (r StreakThreshold) Satisfied(snap Snapshot) bool {
	return snap.HasActiveSession && snap.CurrentStreak >= r.Days
}

// TaskCountThreshold 要求累计完成任务次数达到 Count
type TaskCountThreshold struct{ Count int }

func (TaskCountThreshold) Kind() RuleKind { return RuleTaskCountThreshold }

func (r TaskCountThreshold) Satisfied(snap Snapshot) bool {
	return snap.CompletedTaskCount >= int64(r.Count)
}

// RulesFor 把成就目录中的阈值字段展开为规则列表。
// 分类为 taskCountCategory 的成就额外把 PointsRequired 当作任务数阈值，积分规则照常生效；
// TaskCountRequired 则对任意分类生效。
func RulesFor(a db.Achievement, taskCountCategory string) []Rule {
	var rules []Rule
	if a.PointsRequired != nil {
		rules = append(rules, PointsThreshold{Points: *a.PointsRequired})
		if taskCountCategory != "" && a.Category == taskCountCategory {
			rules = append(rules, TaskCountThreshold{Count: *a.PointsRequired})
		}
	}
	if a.DaysRequired != nil {
		rules = append(rules, StreakThreshold{Days: *a.DaysRequired})
	}
	if a.TaskCountRequired != nil {
		rules = append(rules, TaskCountThreshold{Count: *a.TaskCountRequired})
	}
	return rules
}

// anySatisfied 对规则做 OR 判断；没有规则的成就永远不会自动解锁
func anySatisfied(rules []Rule, snap Snapshot) (Rule, bool) {
	for _, rule := range rules {
		if rule.Satisfied(snap) {
			return rule, true
		}
	}
	return nil, false
}

// AchievementService 负责成就评估与统计
type AchievementService struct {
	db                *gorm.DB
	clock             clock.Clock
	taskCountCategory string
	log               *logging.Logger
}

// AchievementCategoryStat 为单个分类的总数与已获得数
type AchievementCategoryStat struct {
	Category string
	Total    int
	Earned   int
}

// AchievementStats 汇总用户的成就完成度
type AchievementStats struct {
	TotalEarned       int
	TotalAchievements int
	CompletionRate    int
	Categories        []AchievementCategoryStat
}

// AchievementStatus 表示目录中的成就以及用户是否已获得
type AchievementStatus struct {
	Achievement db.Achievement
	Earned      *db.UserAchievement
}

// NewAchievementService 构造 AchievementService，taskCountCategory 为空时使用默认分类标记
func NewAchievementService(gdb *gorm.DB, clk clock.Clock, taskCountCategory string, log *logging.Logger) *AchievementService {
	taskCountCategory = strings.TrimSpace(taskCountCategory)
	if taskCountCategory == "" {
		taskCountCategory = DefaultTaskCountCategory
	}
	return &AchievementService{
		db:                gdb,
		clock:             clk,
		taskCountCategory: taskCountCategory,
		log:               logging.OrNop(log).With("service", "AchievementService"),
	}
}

// Snapshot 读取评估所需的积分、周期与任务数
func (s *AchievementService) Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	tx := s.db.WithContext(ctx)
	var snap Snapshot

	var account db.PointsAccount
	err := tx.Where("user_id = ?", userID).First(&account).Error
	switch {
	case err == nil:
		snap.TotalPoints = account.TotalPoints
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Snapshot{}, storageError("load points account", err)
	}

	session, err := findActiveSession(tx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if session != nil {
		snap.HasActiveSession = true
		snap.CurrentStreak = session.CurrentStreak
	}

	if err := tx.Model(&db.TaskCompletion{}).Where("user_id = ?", userID).Count(&snap.CompletedTaskCount).Error; err != nil {
		return Snapshot{}, storageError("count completions", err)
	}
	return snap, nil
}

// Evaluate 为用户发放新满足条件的成就，返回本次新获得的列表。
// 已获得的成就先在查询时排除，并发评估时由 (user_id, achievement_id) 唯一索引去重。
func (s *AchievementService) Evaluate(ctx context.Context, userID uuid.UUID) ([]db.Achievement, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	earnedIDs := s.db.WithContext(ctx).Model(&db.UserAchievement{}).
		Select("achievement_id").
		Where("user_id = ?", userID)

	var candidates []db.Achievement
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("id NOT IN (?)", earnedIDs).
		Order("id ASC").
		Find(&candidates).Error; err != nil {
		return nil, storageError("load achievement candidates", err)
	}

	type award struct {
		achievement db.Achievement
		rule        Rule
	}
	var awards []award
	for _, candidate := range candidates {
		if rule, ok := anySatisfied(RulesFor(candidate, s.taskCountCategory), snap); ok {
			awards = append(awards, award{achievement: candidate, rule: rule})
		}
	}
	if len(awards) == 0 {
		return []db.Achievement{}, nil
	}

	today := s.clock.Today()
	newlyEarned := make([]db.Achievement, 0, len(awards))
	var matched []RuleKind
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range awards {
			record := db.UserAchievement{
				UserID:        userID,
				AchievementID: a.achievement.ID,
				EarnedDate:    today,
			}
			result := tx.Omit("Achievement").Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
				DoNothing: true,
			}).Create(&record)
			if result.Error != nil {
				return storageError("award achievement", result.Error)
			}
			if result.RowsAffected == 1 {
				newlyEarned = append(newlyEarned, a.achievement)
				matched = append(matched, a.rule.Kind())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, a := range newlyEarned {
		metrics.RecordAchievementEarned(a.Category)
		s.log.Info("achievement earned",
			"user_id", userID,
			"achievement_id", a.ID,
			"name", a.Name,
			"rule", matched[i],
		)
	}
	return newlyEarned, nil
}

// List 返回上架中的成就目录，并标注用户的获得情况
func (s *AchievementService) List(ctx context.Context, userID uuid.UUID) ([]AchievementStatus, error) {
	var catalog []db.Achievement
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("category ASC, id ASC").
		Find(&catalog).Error; err != nil {
		return nil, storageError("list achievements", err)
	}

	earned, err := s.earnedByAchievement(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]AchievementStatus, 0, len(catalog))
	for _, a := range catalog {
		status := AchievementStatus{Achievement: a}
		if record, ok := earned[a.ID]; ok {
			r := record
			status.Earned = &r
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Stats 计算成就完成率与分类统计，完成率为四舍五入后的百分比
func (s *AchievementService) Stats(ctx context.Context, userID uuid.UUID) (*AchievementStats, error) {
	statuses, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &AchievementStats{TotalAchievements: len(statuses)}
	byCategory := make(map[string]*AchievementCategoryStat)
	for _, status := range statuses {
		category := status.Achievement.Category
		entry, ok := byCategory[category]
		if !ok {
			entry = &AchievementCategoryStat{Category: category}
			byCategory[category] = entry
		}
		entry.Total++
		if status.Earned != nil {
			entry.Earned++
			stats.TotalEarned++
		}
	}

	if stats.TotalAchievements > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.TotalEarned) / float64(stats.TotalAchievements) * 100))
	}

	stats.Categories = make([]AchievementCategoryStat, 0, len(byCategory))
	for _, entry := range byCategory {
		stats.Categories = append(stats.Categories, *entry)
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		return stats.Categories[i].Category < stats.Categories[j].Category
	})
	return stats, nil
}

func (s *AchievementService) earnedByAchievement(ctx context.Context, userID uuid.UUID) (map[uint]db.UserAchievement, error) {
	var records []db.UserAchievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&records).Error; err != nil {
		return nil, storageError("list user achievements", err)
	}
	earned := make(map[uint]db.UserAchievement, len(records))
	for _, record := range records {
		earned[record.AchievementID] = record
	}
	return earned, nil
}
