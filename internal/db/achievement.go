package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement 是成就目录
// PointsRequired/DaysRequired/TaskCountRequired 为空表示不使用对应规则
type Achievement struct {
	gorm.Model
	Name              string `gorm:"size:100;uniqueIndex;not null"`
	Description       string `gorm:"type:text"`
	Icon              string `gorm:"size:50"`
	Category          string `gorm:"size:50;index"`
	PointsRequired    *int
	DaysRequired      *int
	TaskCountRequired *int
	IsActive          bool `gorm:"not null;index"`
}

// UserAchievement 记录用户获得的成就，UserID + AchievementID 唯一，不会重复发放
type UserAchievement struct {
	gorm.Model
	UserID        uuid.UUID   `gorm:"type:uuid;not null;index;index:idx_user_achievement_unique,unique,priority:1"`
	AchievementID uint        `gorm:"not null;index:idx_user_achievement_unique,unique,priority:2"`
	Achievement   Achievement `gorm:"constraint:OnDelete:CASCADE"`
	EarnedDate    time.Time   `gorm:"type:date;not null"`
}
