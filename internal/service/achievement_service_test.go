package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"golang.org/x/sync/errgroup"
)

func TestRulesFor(t *testing.T) {
	points := RulesFor(db.Achievement{Category: "points", PointsRequired: intPtr(100)}, "tasks")
	require.Len(t, points, 1)
	assert.Equal(t, RulePointsThreshold, points[0].Kind())

	counted := RulesFor(db.Achievement{Category: "tasks", PointsRequired: intPtr(10)}, "tasks")
	require.Len(t, counted, 2)
	assert.Equal(t, RulePointsThreshold, counted[0].Kind())
	assert.Equal(t, RuleTaskCountThreshold, counted[1].Kind())

	mixed := RulesFor(db.Achievement{DaysRequired: intPtr(7), TaskCountRequired: intPtr(3)}, "tasks")
	require.Len(t, mixed, 2)
	assert.Equal(t, RuleStreakThreshold, mixed[0].Kind())
	assert.Equal(t, RuleTaskCountThreshold, mixed[1].Kind())

	assert.Empty(t, RulesFor(db.Achievement{Category: "tasks"}, "tasks"))
}

func TestRuleSatisfied(t *testing.T) {
	snap := Snapshot{TotalPoints: 100, HasActiveSession: false, CurrentStreak: 9, CompletedTaskCount: 4}

	assert.True(t, PointsThreshold{Points: 100}.Satisfied(snap))
	assert.False(t, PointsThreshold{Points: 101}.Satisfied(snap))
	assert.False(t, StreakThreshold{Days: 7}.Satisfied(snap), "streak needs an active session")
	snap.HasActiveSession = true
	assert.True(t, StreakThreshold{Days: 7}.Satisfied(snap))
	assert.True(t, TaskCountThreshold{Count: 4}.Satisfied(snap))
	assert.False(t, TaskCountThreshold{Count: 5}.Satisfied(snap))
}

func TestAchievementEvaluatePointsOnlyWithoutSession(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, env.db.Create(&db.PointsAccount{UserID: userID, TotalPoints: 100, CurrentLevel: 2}).Error)
	centurion := env.createAchievement(t, db.Achievement{Name: "百分达人", Category: "points", PointsRequired: intPtr(100)})
	env.createAchievement(t, db.Achievement{Name: "坚持一周", Category: "streak", DaysRequired: intPtr(7)})

	earned, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, centurion.ID, earned[0].ID)

	again, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, again)

	var records []db.UserAchievement
	require.NoError(t, env.db.Where("user_id = ?", userID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.True(t, records[0].EarnedDate.Equal(date(2024, 1, 15)))
}

func TestAchievementEvaluateStreak(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	smoking := env.createAddictionType(t, "吸烟", true)
	week := env.createAchievement(t, db.Achievement{Name: "坚持一周", Category: "streak", DaysRequired: intPtr(7)})

	_, err := env.sessions.Start(ctx, userID, SessionInput{AddictionTypeID: smoking.ID})
	require.NoError(t, err)

	env.clock.AdvanceDays(6)
	_, err = env.sessions.Checkin(ctx, userID, CheckinInput{MoodRating: 3})
	require.NoError(t, err)
	earned, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, earned)

	env.clock.AdvanceDays(1)
	_, err = env.sessions.Checkin(ctx, userID, CheckinInput{MoodRating: 4})
	require.NoError(t, err)
	earned, err = env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, week.ID, earned[0].ID)
}

func TestAchievementEvaluateTaskCount(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	env.createAchievement(t, db.Achievement{Name: "任务新手", Category: DefaultTaskCountCategory, PointsRequired: intPtr(2)})
	explicit := env.createAchievement(t, db.Achievement{Name: "三连", Category: "milestone", TaskCountRequired: intPtr(3)})

	// 零分任务，确保只有任务数规则能触发
	task := env.createTask(t, "记录日记", 0, "mind")
	for day := 13; day <= 15; day++ {
		d := date(2024, 1, day)
		_, err := env.tasks.Complete(ctx, userID, task.ID, CompleteInput{Date: &d})
		require.NoError(t, err)
	}

	earned, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	require.Len(t, earned, 2)
	assert.Equal(t, "任务新手", earned[0].Name)
	assert.Equal(t, explicit.ID, earned[1].ID)
}

func TestAchievementEvaluateSkipsInactive(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	a := env.createAchievement(t, db.Achievement{Name: "起步", Category: "points", PointsRequired: intPtr(0)})
	require.NoError(t, env.db.Model(&a).Update("is_active", false).Error)

	earned, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, earned)
}

func TestAchievementEvaluateConcurrent(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	env.createAchievement(t, db.Achievement{Name: "起步", Category: "points", PointsRequired: intPtr(0)})

	const attempts = 5
	counts := make([]int, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			earned, err := env.achievements.Evaluate(ctx, userID)
			counts[i] = len(earned)
			return err
		})
	}
	require.NoError(t, g.Wait())

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 1, total)

	var records int64
	require.NoError(t, env.db.Model(&db.UserAchievement{}).Where("user_id = ?", userID).Count(&records).Error)
	assert.EqualValues(t, 1, records)
}

func TestAchievementStats(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, env.db.Create(&db.PointsAccount{UserID: userID, TotalPoints: 60, CurrentLevel: 2}).Error)
	env.createAchievement(t, db.Achievement{Name: "五十分", Category: "points", PointsRequired: intPtr(50)})
	env.createAchievement(t, db.Achievement{Name: "一百分", Category: "points", PointsRequired: intPtr(100)})
	env.createAchievement(t, db.Achievement{Name: "坚持一周", Category: "streak", DaysRequired: intPtr(7)})

	_, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)

	stats, err := env.achievements.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEarned)
	assert.Equal(t, 3, stats.TotalAchievements)
	assert.Equal(t, 33, stats.CompletionRate)
	assert.Equal(t, []AchievementCategoryStat{
		{Category: "points", Total: 2, Earned: 1},
		{Category: "streak", Total: 1, Earned: 0},
	}, stats.Categories)

	statuses, err := env.achievements.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.NotNil(t, statuses[0].Earned)
	assert.Nil(t, statuses[1].Earned)
}

func TestAchievementEvaluateSkipsRowInsertedConcurrently(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	task := env.createTask(t, "喝水", 10, "health")
	badge := env.createAchievement(t, db.Achievement{Name: "起步", Category: "points", PointsRequired: intPtr(10)})

	_, err := env.tasks.Complete(ctx, userID, task.ID, CompleteInput{})
	require.NoError(t, err)

	// 候选集已读出、尚未写入时，另一次评估抢先发放了同一成就
	afterFirstQueryOn(t, env.db, "achievements", func() {
		require.NoError(t, env.db.Omit("Achievement").Create(&db.UserAchievement{
			UserID:        userID,
			AchievementID: badge.ID,
			EarnedDate:    env.clock.Today(),
		}).Error)
	})

	earned, err := env.achievements.Evaluate(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, earned)

	var records []db.UserAchievement
	require.NoError(t, env.db.Where("user_id = ?", userID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, badge.ID, records[0].AchievementID)
}
