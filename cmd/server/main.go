// Package main implements recoveryd, the recovery progress and gamification service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/config"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/service"
	"gorm.io/gorm"
)

var (
	// configPath 指向可选的 YAML 配置文件
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recoveryd",
	Short: "Recovery progress and gamification service",
	Long: `recoveryd tracks recovery sessions, daily task completions, points,
levels, achievements and mood check-ins behind a JSON HTTP API.

Running without a subcommand is the same as "recoveryd serve".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (default $RECOVERY_CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// runtimeDeps 是各子命令共享的初始化结果
type runtimeDeps struct {
	cfg    config.AppConfig
	log    *logging.Logger
	db     *gorm.DB
	levels service.LevelTable
	clock  clock.Clock
}

// bootstrap 读取配置、初始化日志并打开数据库（自动迁移）
func bootstrap() (*runtimeDeps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	levels, err := levelTable(cfg.Points.Levels)
	if err != nil {
		return nil, fmt.Errorf("points.levels: %w", err)
	}
	clk, err := clock.NewInZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	gdb, err := db.Open(db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		log.Error("open database failed", "driver", cfg.Database.Driver, "error", err)
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		log.Error("migrate database failed", "error", err)
		return nil, err
	}

	log.Info("database ready", "driver", cfg.Database.Driver)
	return &runtimeDeps{cfg: cfg, log: log, db: gdb, levels: levels, clock: clk}, nil
}

// levelTable 把配置中的等级档位转换为积分服务使用的等级表，校验由 service.NewLevelTable 完成
func levelTable(steps []config.LevelStep) (service.LevelTable, error) {
	converted := make([]service.LevelStep, 0, len(steps))
	for _, step := range steps {
		converted = append(converted, service.LevelStep{Threshold: step.Threshold, Level: step.Level})
	}
	return service.NewLevelTable(converted)
}

func (d *runtimeDeps) close() {
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.Close()
	}
	d.log.Sync()
}
