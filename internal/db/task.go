package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task 是任务目录，由后台维护
type Task struct {
	gorm.Model
	Title           string `gorm:"size:200;not null"`
	Description     string `gorm:"type:text"`
	Points          int    `gorm:"not null"`
	IsDaily         bool   `gorm:"not null;index"`
	Category        string `gorm:"size:50;index"`
	DifficultyLevel int
	IsActive        bool `gorm:"not null;index"`
}

// TaskCompletion 记录任务完成情况
// UserID + TaskID + CompletedDate 采用唯一索引，同一任务每人每天最多完成一次；写入后不再修改
type TaskCompletion struct {
	gorm.Model
	UserID        uuid.UUID `gorm:"type:uuid;not null;index;index:idx_task_completion_unique,unique,priority:1"`
	TaskID        uint      `gorm:"not null;index:idx_task_completion_unique,unique,priority:2"`
	Task          Task      `gorm:"constraint:OnDelete:RESTRICT"`
	CompletedDate time.Time `gorm:"type:date;not null;index;index:idx_task_completion_unique,unique,priority:3"`
	PointsEarned  int       `gorm:"not null"`
	Notes         string    `gorm:"type:text"`
}
