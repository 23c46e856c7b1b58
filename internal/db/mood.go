package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MoodCheckin 记录每日心情打卡
// UserID + CheckinDate 采用唯一索引，同一天重复打卡为原地更新
// RecoverySessionID 在首次写入时关联当时进行中的戒断周期，可为空
type MoodCheckin struct {
	gorm.Model
	UserID            uuid.UUID `gorm:"type:uuid;not null;index;index:idx_mood_checkin_unique,unique,priority:1"`
	RecoverySessionID *uint     `gorm:"index"`
	CheckinDate       time.Time `gorm:"type:date;not null;index:idx_mood_checkin_unique,unique,priority:2"`
	MoodRating        int       `gorm:"not null"`
	Notes             string    `gorm:"type:text"`
}

// TableName 重写确保唯一索引作用到 user_id + checkin_date
func (MoodCheckin) TableName() string {
	return "mood_checkins"
}
