package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 是所有环境变量的统一前缀，例如 RECOVERY_DATABASE_DSN。
const EnvPrefix = "RECOVERY_"

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr   string            `koanf:"listen_addr"`
	GinMode      string            `koanf:"gin_mode"`
	Timezone     string            `koanf:"timezone"`
	Database     DatabaseConfig    `koanf:"database"`
	Log          LogConfig         `koanf:"log"`
	Points       PointsConfig      `koanf:"points"`
	Achievements AchievementConfig `koanf:"achievements"`
}

// DatabaseConfig 描述存储后端，driver 支持 sqlite 与 postgres。
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// LogConfig 控制日志输出格式。
type LogConfig struct {
	Mode string `koanf:"mode"`
}

// LevelStep 表示等级表中的一档：累计积分达到 Threshold 即为 Level 级。
type LevelStep struct {
	Threshold int `koanf:"threshold"`
	Level     int `koanf:"level"`
}

// PointsConfig 保存积分等级表，便于不改代码调整奖励曲线。
type PointsConfig struct {
	Levels []LevelStep `koanf:"levels"`
}

// AchievementConfig 保存成就规则相关配置。
type AchievementConfig struct {
	// TaskCountCategory 为按完成任务数解锁的成就所使用的分类标记。
	TaskCountCategory string `koanf:"task_count_category"`
}

// DefaultLevels 返回默认等级表。
func DefaultLevels() []LevelStep {
	return []LevelStep{
		{Threshold: 0, Level: 1},
		{Threshold: 50, Level: 2},
		{Threshold: 150, Level: 3},
		{Threshold: 300, Level: 4},
		{Threshold: 500, Level: 5},
	}
}

// Load 依次读取 YAML 配置文件（可选）、.env 与环境变量，并为缺失项提供安全的默认值。
// configPath 为空时使用 RECOVERY_CONFIG_FILE，仍为空则跳过文件。
func Load(configPath string) (AppConfig, error) {
	k := koanf.New(".")

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG_FILE"))
	}
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return AppConfig{}, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var sections = map[string]struct{}{
	"database":     {},
	"log":          {},
	"points":       {},
	"achievements": {},
}

// envKey 把 RECOVERY_DATABASE_DSN 映射为 database.dsn，顶层字段（如 RECOVERY_LISTEN_ADDR）保持原样。
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 2 {
		if _, ok := sections[parts[0]]; ok {
			return parts[0] + "." + parts[1]
		}
	}
	return key
}

func applyDefaults(cfg *AppConfig) {
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.GinMode = strings.TrimSpace(cfg.GinMode)
	if cfg.GinMode == "" {
		cfg.GinMode = "release"
	}

	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	cfg.Database.DSN = strings.TrimSpace(cfg.Database.DSN)
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "data/recovery.db"
	}

	if strings.TrimSpace(cfg.Log.Mode) == "" {
		cfg.Log.Mode = "production"
	}

	if len(cfg.Points.Levels) == 0 {
		cfg.Points.Levels = DefaultLevels()
	}

	cfg.Achievements.TaskCountCategory = strings.TrimSpace(cfg.Achievements.TaskCountCategory)
	if cfg.Achievements.TaskCountCategory == "" {
		cfg.Achievements.TaskCountCategory = "tasks"
	}
}

// Validate 检查配置是否可用。
func (c AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}

	return nil
}
