package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/recovery.db", cfg.Database.DSN)
	assert.Equal(t, DefaultLevels(), cfg.Points.Levels)
	assert.Equal(t, "tasks", cfg.Achievements.TaskCountCategory)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
listen_addr: ":9000"
timezone: Asia/Shanghai
database:
  driver: sqlite
  dsn: /tmp/from-file.db
points:
  levels:
    - {threshold: 0, level: 1}
    - {threshold: 100, level: 2}
achievements:
  task_count_category: task-master
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("RECOVERY_DATABASE_DSN", "/tmp/from-env.db")
	t.Setenv("RECOVERY_GIN_MODE", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.DSN)
	assert.Equal(t, []LevelStep{{Threshold: 0, Level: 1}, {Threshold: 100, Level: 2}}, cfg.Points.Levels)
	assert.Equal(t, "task-master", cfg.Achievements.TaskCountCategory)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RECOVERY_TIMEZONE=Europe/Berlin\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RECOVERY_TIMEZONE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
}

func TestValidate(t *testing.T) {
	base := AppConfig{}
	applyDefaults(&base)
	require.NoError(t, base.Validate())

	badDriver := base
	badDriver.Database.Driver = "mongo"
	assert.Error(t, badDriver.Validate())

	badZone := base
	badZone.Timezone = "Nowhere/Land"
	assert.Error(t, badZone.Validate())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.dsn", envKey("RECOVERY_DATABASE_DSN"))
	assert.Equal(t, "listen_addr", envKey("RECOVERY_LISTEN_ADDR"))
	assert.Equal(t, "achievements.task_count_category", envKey("RECOVERY_ACHIEVEMENTS_TASK_COUNT_CATEGORY"))
}
