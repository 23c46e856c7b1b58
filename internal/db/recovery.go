package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddictionType 是戒断类型目录，由后台维护，引擎只读。
type AddictionType struct {
	gorm.Model
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	IsActive    bool   `gorm:"not null;index"`
}

// RecoverySession 记录一次戒断周期
// 同一用户同时最多一个 IsActive=true 的周期，由 idx_recovery_sessions_one_active 部分唯一索引保证（见 EnsureIndexes）
// CurrentStreak/LongestStreak 只在打卡时更新；结束后整行只读
type RecoverySession struct {
	gorm.Model
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	AddictionTypeID uint       `gorm:"not null;index"`
	StartDate       time.Time  `gorm:"type:date;not null"`
	EndDate         *time.Time `gorm:"type:date"`
	IsActive        bool       `gorm:"not null;index"`
	TargetDays      int        `gorm:"not null"`
	CurrentStreak   int        `gorm:"not null"`
	LongestStreak   int        `gorm:"not null"`
	Notes           string     `gorm:"type:text"`
}
