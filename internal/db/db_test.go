package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:db-test-%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := Open(Config{Driver: "sqlite", DSN: dsn, LogLevel: logger.Silent, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestMigrateIsIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))
	assert.True(t, gdb.Migrator().HasIndex(&RecoverySession{}, "idx_recovery_sessions_one_active"))
	assert.True(t, gdb.Migrator().HasIndex(&TaskCompletion{}, "idx_task_completion_unique"))
}

func TestOneActiveSessionPerUserIsEnforcedByStore(t *testing.T) {
	gdb := openTestDB(t)
	userID := uuid.New()
	today := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	first := RecoverySession{UserID: userID, AddictionTypeID: 1, StartDate: today, IsActive: true, TargetDays: 30}
	require.NoError(t, gdb.Create(&first).Error)

	second := RecoverySession{UserID: userID, AddictionTypeID: 1, StartDate: today, IsActive: true, TargetDays: 30}
	err := gdb.Create(&second).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "unexpected error: %v", err)

	// 已结束的周期不受限制
	ended := RecoverySession{UserID: userID, AddictionTypeID: 1, StartDate: today, IsActive: false, TargetDays: 30}
	require.NoError(t, gdb.Create(&ended).Error)

	other := RecoverySession{UserID: uuid.New(), AddictionTypeID: 1, StartDate: today, IsActive: true, TargetDays: 30}
	require.NoError(t, gdb.Create(&other).Error)
}

func TestTaskCompletionUniquePerDay(t *testing.T) {
	gdb := openTestDB(t)
	userID := uuid.New()
	task := Task{Title: "喝水", Points: 10, IsActive: true}
	require.NoError(t, gdb.Create(&task).Error)

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, gdb.Create(&TaskCompletion{UserID: userID, TaskID: task.ID, CompletedDate: day, PointsEarned: 10}).Error)

	err := gdb.Create(&TaskCompletion{UserID: userID, TaskID: task.ID, CompletedDate: day, PointsEarned: 10}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "unexpected error: %v", err)

	require.NoError(t, gdb.Create(&TaskCompletion{UserID: userID, TaskID: task.ID, CompletedDate: day.AddDate(0, 0, 1), PointsEarned: 10}).Error)

	var stored TaskCompletion
	require.NoError(t, gdb.Where("user_id = ? AND completed_date = ?", userID, day).First(&stored).Error)
	assert.True(t, stored.CompletedDate.Equal(day))
}

func TestUserAchievementUnique(t *testing.T) {
	gdb := openTestDB(t)
	userID := uuid.New()
	achievement := Achievement{Name: "第一步", IsActive: true}
	require.NoError(t, gdb.Create(&achievement).Error)

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, gdb.Create(&UserAchievement{UserID: userID, AchievementID: achievement.ID, EarnedDate: day}).Error)
	err := gdb.Create(&UserAchievement{UserID: userID, AchievementID: achievement.ID, EarnedDate: day}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "unexpected error: %v", err)
}

func TestEnsureIndexesPostgresDDL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE UNIQUE INDEX IF NOT EXISTS idx_recovery_sessions_one_active") + `(?s).*WHERE is_active = true AND deleted_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureIndexes(gdb))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)

	_, err = Open(Config{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recovery.db")
	gdb, err := Open(Config{Driver: "sqlite", DSN: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
