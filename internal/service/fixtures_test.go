package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db           *gorm.DB
	clock        *clock.Fixed
	points       *PointsService
	moods        *MoodService
	sessions     *SessionService
	tasks        *TaskService
	achievements *AchievementService
}

func setupServiceTestDB(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:service-test-%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.Open(db.Config{Driver: "sqlite", DSN: dsn, LogLevel: logger.Silent, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clk := clock.NewFixed(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	points := NewPointsService(gdb, DefaultLevelTable(), nil)
	moods := NewMoodService(gdb, clk, nil)

	return &testEnv{
		db:           gdb,
		clock:        clk,
		points:       points,
		moods:        moods,
		sessions:     NewSessionService(gdb, clk, moods, nil),
		tasks:        NewTaskService(gdb, clk, points, nil),
		achievements: NewAchievementService(gdb, clk, DefaultTaskCountCategory, nil),
	}
}

func (e *testEnv) createAddictionType(t *testing.T, name string, active bool) db.AddictionType {
	t.Helper()
	item := db.AddictionType{Name: name, IsActive: active}
	require.NoError(t, e.db.Create(&item).Error)
	return item
}

func (e *testEnv) createTask(t *testing.T, title string, points int, category string) db.Task {
	t.Helper()
	task := db.Task{Title: title, Points: points, Category: category, IsDaily: true, IsActive: true}
	require.NoError(t, e.db.Create(&task).Error)
	return task
}

func (e *testEnv) createAchievement(t *testing.T, a db.Achievement) db.Achievement {
	t.Helper()
	a.IsActive = true
	require.NoError(t, e.db.Create(&a).Error)
	return a
}

func intPtr(v int) *int { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// zeroCountsOn 让 table 上的 Count 查询恒为 0，事务内的存在性预检因此放行，
// 重复写入只能由存储层的唯一约束拦下。
func zeroCountsOn(t *testing.T, gdb *gorm.DB, table string) {
	t.Helper()
	name := "test:zero_counts_" + table
	require.NoError(t, gdb.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		if count, ok := tx.Statement.Dest.(*int64); ok {
			*count = 0
		}
	}))
	t.Cleanup(func() { _ = gdb.Callback().Query().Remove(name) })
}

// afterFirstQueryOn 在 table 上的第一次查询结束后执行 fn，用来在读与写之间插入并发写入。
func afterFirstQueryOn(t *testing.T, gdb *gorm.DB, table string, fn func()) {
	t.Helper()
	name := "test:after_query_" + table
	fired := false
	require.NoError(t, gdb.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if fired || tx.Statement.Table != table {
			return
		}
		fired = true
		fn()
	}))
	t.Cleanup(func() { _ = gdb.Callback().Query().Remove(name) })
}
