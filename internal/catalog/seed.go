// Package catalog 负责从 YAML 文件导入戒断类型、任务与成就目录。
// 引擎只读这些目录，导入由运维通过 recoveryd seed 执行。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// File 是目录文件的结构
type File struct {
	AddictionTypes []AddictionTypeEntry `yaml:"addiction_types"`
	Tasks          []TaskEntry          `yaml:"tasks"`
	Achievements   []AchievementEntry   `yaml:"achievements"`
}

// AddictionTypeEntry 按 Name 去重
type AddictionTypeEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

// TaskEntry 按 Title 去重
type TaskEntry struct {
	Title           string `yaml:"title"`
	Description     string `yaml:"description"`
	Points          int    `yaml:"points"`
	Daily           bool   `yaml:"daily"`
	Category        string `yaml:"category"`
	DifficultyLevel int    `yaml:"difficulty"`
	Active          *bool  `yaml:"active"`
}

// AchievementEntry 按 Name 去重
type AchievementEntry struct {
	Name              string `yaml:"name"`
	Description       string `yaml:"description"`
	Icon              string `yaml:"icon"`
	Category          string `yaml:"category"`
	PointsRequired    *int   `yaml:"points_required"`
	DaysRequired      *int   `yaml:"days_required"`
	TaskCountRequired *int   `yaml:"task_count_required"`
	Active            *bool  `yaml:"active"`
}

// Result 统计一次导入新增与更新的条数
type Result struct {
	Created int
	Updated int
}

// Parse 解析目录文件，未知字段视为错误
func Parse(r io.Reader) (*File, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Load 读取并解析 path 指向的目录文件
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate 检查必填字段与阈值
func (f *File) Validate() error {
	seen := make(map[string]struct{})
	for i, item := range f.AddictionTypes {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return fmt.Errorf("addiction_types[%d]: name is required", i)
		}
		if _, dup := seen["a:"+name]; dup {
			return fmt.Errorf("addiction_types[%d]: duplicate name %q", i, name)
		}
		seen["a:"+name] = struct{}{}
	}
	for i, item := range f.Tasks {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			return fmt.Errorf("tasks[%d]: title is required", i)
		}
		if item.Points < 0 {
			return fmt.Errorf("tasks[%d]: points must not be negative", i)
		}
		if _, dup := seen["t:"+title]; dup {
			return fmt.Errorf("tasks[%d]: duplicate title %q", i, title)
		}
		seen["t:"+title] = struct{}{}
	}
	for i, item := range f.Achievements {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return fmt.Errorf("achievements[%d]: name is required", i)
		}
		for _, v := range []*int{item.PointsRequired, item.DaysRequired, item.TaskCountRequired} {
			if v != nil && *v < 0 {
				return fmt.Errorf("achievements[%d]: thresholds must not be negative", i)
			}
		}
		if _, dup := seen["c:"+name]; dup {
			return fmt.Errorf("achievements[%d]: duplicate name %q", i, name)
		}
		seen["c:"+name] = struct{}{}
	}
	return nil
}

// Seed 在单个事务内写入目录，已存在的条目按名称更新
func Seed(ctx context.Context, gdb *gorm.DB, file *File) (Result, error) {
	var result Result
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range file.AddictionTypes {
			created, err := upsert(tx, &db.AddictionType{}, "name = ?", strings.TrimSpace(item.Name),
				&db.AddictionType{
					Name:        strings.TrimSpace(item.Name),
					Description: strings.TrimSpace(item.Description),
					IsActive:    boolOr(item.Active, true),
				},
				map[string]interface{}{
					"description": strings.TrimSpace(item.Description),
					"is_active":   boolOr(item.Active, true),
				})
			if err != nil {
				return fmt.Errorf("seed addiction type %q: %w", item.Name, err)
			}
			result.count(created)
		}

		for _, item := range file.Tasks {
			title := strings.TrimSpace(item.Title)
			created, err := upsert(tx, &db.Task{}, "title = ?", title,
				&db.Task{
					Title:           title,
					Description:     strings.TrimSpace(item.Description),
					Points:          item.Points,
					IsDaily:         item.Daily,
					Category:        strings.TrimSpace(item.Category),
					DifficultyLevel: item.DifficultyLevel,
					IsActive:        boolOr(item.Active, true),
				},
				map[string]interface{}{
					"description":      strings.TrimSpace(item.Description),
					"points":           item.Points,
					"is_daily":         item.Daily,
					"category":         strings.TrimSpace(item.Category),
					"difficulty_level": item.DifficultyLevel,
					"is_active":        boolOr(item.Active, true),
				})
			if err != nil {
				return fmt.Errorf("seed task %q: %w", title, err)
			}
			result.count(created)
		}

		for _, item := range file.Achievements {
			name := strings.TrimSpace(item.Name)
			created, err := upsert(tx, &db.Achievement{}, "name = ?", name,
				&db.Achievement{
					Name:              name,
					Description:       strings.TrimSpace(item.Description),
					Icon:              strings.TrimSpace(item.Icon),
					Category:          strings.TrimSpace(item.Category),
					PointsRequired:    item.PointsRequired,
					DaysRequired:      item.DaysRequired,
					TaskCountRequired: item.TaskCountRequired,
					IsActive:          boolOr(item.Active, true),
				},
				map[string]interface{}{
					"description":         strings.TrimSpace(item.Description),
					"icon":                strings.TrimSpace(item.Icon),
					"category":            strings.TrimSpace(item.Category),
					"points_required":     item.PointsRequired,
					"days_required":       item.DaysRequired,
					"task_count_required": item.TaskCountRequired,
					"is_active":           boolOr(item.Active, true),
				})
			if err != nil {
				return fmt.Errorf("seed achievement %q: %w", name, err)
			}
			result.count(created)
		}
		return nil
	})
	return result, err
}

// upsert 按 where 查找已有记录：存在则用 updates 更新，否则创建 fresh
func upsert(tx *gorm.DB, model interface{}, where string, key string, fresh interface{}, updates map[string]interface{}) (bool, error) {
	err := tx.Where(where, key).First(model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, tx.Create(fresh).Error
	}
	if err != nil {
		return false, err
	}
	return false, tx.Model(model).Updates(updates).Error
}

func (r *Result) count(created bool) {
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
