package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
)

func TestMoodUpsertSameDayUpdatesInPlace(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	day := date(2024, 1, 15)

	first, err := env.moods.Upsert(ctx, userID, day, 2, "有点难")
	require.NoError(t, err)

	second, err := env.moods.Upsert(ctx, userID, day, 5, "好多了")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.MoodRating)
	assert.Equal(t, "好多了", second.Notes)

	var rows []db.MoodCheckin
	require.NoError(t, env.db.Where("user_id = ?", userID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].MoodRating)
}

func TestMoodUpsertKeepsSessionLink(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	smoking := env.createAddictionType(t, "吸烟", true)
	session, err := env.sessions.Start(ctx, userID, SessionInput{AddictionTypeID: smoking.ID})
	require.NoError(t, err)

	_, err = env.sessions.Checkin(ctx, userID, CheckinInput{MoodRating: 3})
	require.NoError(t, err)

	updated, err := env.moods.Upsert(ctx, userID, env.clock.Today(), 4, "")
	require.NoError(t, err)
	require.NotNil(t, updated.RecoverySessionID)
	assert.Equal(t, session.ID, *updated.RecoverySessionID)
	assert.Equal(t, 4, updated.MoodRating)
}

func TestMoodUpsertLinksActiveSession(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	// 没有进行中的周期时不关联
	loose, err := env.moods.Upsert(ctx, userID, date(2024, 1, 10), 3, "")
	require.NoError(t, err)
	assert.Nil(t, loose.RecoverySessionID)

	smoking := env.createAddictionType(t, "吸烟", true)
	session, err := env.sessions.Start(ctx, userID, SessionInput{AddictionTypeID: smoking.ID})
	require.NoError(t, err)
	env.clock.AdvanceDays(3)

	linked, err := env.moods.Upsert(ctx, userID, time.Time{}, 4, "")
	require.NoError(t, err)
	require.NotNil(t, linked.RecoverySessionID)
	assert.Equal(t, session.ID, *linked.RecoverySessionID)
	assert.True(t, linked.CheckinDate.Equal(date(2024, 1, 18)))

	// 周期开始之前的补记不属于该周期
	backfill, err := env.moods.Upsert(ctx, userID, date(2024, 1, 12), 2, "")
	require.NoError(t, err)
	assert.Nil(t, backfill.RecoverySessionID)

	// 直接写心情不推进连续天数
	current, err := env.sessions.Current(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 0, current.Session.CurrentStreak)
}

func TestMoodUpsertRejectsInvalidRating(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, rating := range []int{0, 6, -1} {
		_, err := env.moods.Upsert(ctx, userID, date(2024, 1, 15), rating, "")
		assert.True(t, errors.Is(err, ErrInvalidMoodRating), "rating %d", rating)
	}

	var count int64
	require.NoError(t, env.db.Model(&db.MoodCheckin{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMoodHistoryOrder(t *testing.T) {
	env := setupServiceTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	for i, rating := range []int{1, 2, 3} {
		_, err := env.moods.Upsert(ctx, userID, date(2024, 1, 10+i), rating, "")
		require.NoError(t, err)
	}

	rows, err := env.moods.History(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].CheckinDate.Equal(date(2024, 1, 12)))
	assert.True(t, rows[1].CheckinDate.Equal(date(2024, 1, 11)))
}
