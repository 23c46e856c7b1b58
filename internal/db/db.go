package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 描述数据库连接参数。
type Config struct {
	Driver       string
	DSN          string
	LogLevel     logger.LogLevel
	MaxOpenConns int
}

// Open 打开数据库连接。
// TranslateError 开启后，唯一约束冲突统一表现为 gorm.ErrDuplicatedKey。
func Open(cfg Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		if err := ensureParentDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return gdb, nil
}

// Migrate 自动迁移所有模型并创建 struct tag 无法表达的索引。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&AddictionType{},
		&RecoverySession{},
		&Task{},
		&TaskCompletion{},
		&PointsAccount{},
		&Achievement{},
		&UserAchievement{},
		&MoodCheckin{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(gdb)
}

// EnsureIndexes 创建部分唯一索引：每个用户最多只有一个进行中的戒断周期。
// 并发开启周期时由该索引兜底，应用层的存在性检查只用于提前返回。
func EnsureIndexes(gdb *gorm.DB) error {
	if err := gdb.Exec(activeSessionIndexSQL(gdb.Dialector.Name())).Error; err != nil {
		return fmt.Errorf("create idx_recovery_sessions_one_active: %w", err)
	}
	return nil
}

func activeSessionIndexSQL(dialect string) string {
	predicate := "is_active = true"
	if dialect == "sqlite" {
		predicate = "is_active = 1"
	}
	return fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_recovery_sessions_one_active
		ON recovery_sessions (user_id)
		WHERE %s AND deleted_at IS NULL`, predicate)
}

func ensureParentDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}

	path := dsn
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
