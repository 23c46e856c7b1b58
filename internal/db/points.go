package db

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointsAccount 保存用户累计积分与等级，每个用户一行。
// 只在任务完成的同一事务中递增。
type PointsAccount struct {
	gorm.Model
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	TotalPoints  int       `gorm:"not null"`
	CurrentLevel int       `gorm:"not null"`
}
