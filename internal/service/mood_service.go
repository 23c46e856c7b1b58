package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMoodHistoryLimit = 30
	maxMoodHistoryLimit     = 100
)

// MoodService 维护每日心情打卡，同一用户同一天只保留一行
type MoodService struct {
	db    *gorm.DB
	clock clock.Clock
	log   *logging.Logger
}

// NewMoodService 构造 MoodService
func NewMoodService(gdb *gorm.DB, clk clock.Clock, log *logging.Logger) *MoodService {
	return &MoodService{db: gdb, clock: clk, log: logging.OrNop(log).With("service", "MoodService")}
}

// Upsert 写入 date 当天的心情记录，已存在时原地更新评分与备注。
// date 不早于进行中周期的开始日期时关联该周期；连续天数只由 SessionService.Checkin 推进。
func (s *MoodService) Upsert(ctx context.Context, userID uuid.UUID, date time.Time, rating int, notes string) (*db.MoodCheckin, error) {
	if err := validateMoodRating(rating); err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.clock.Today()
	}
	date = clock.DateOf(date)
	notes = sanitizeNotes(notes)

	var checkin *db.MoodCheckin
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := findActiveSession(tx, userID)
		if err != nil {
			return err
		}

		var sessionID *uint
		if session != nil && !date.Before(clock.DateOf(session.StartDate)) {
			id := session.ID
			sessionID = &id
		}

		checkin, err = s.upsert(tx, userID, date, rating, notes, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordCheckin()
	return checkin, nil
}

// History 按日期倒序返回最近的心情记录
func (s *MoodService) History(ctx context.Context, userID uuid.UUID, limit int) ([]db.MoodCheckin, error) {
	if limit <= 0 {
		limit = defaultMoodHistoryLimit
	}
	if limit > maxMoodHistoryLimit {
		limit = maxMoodHistoryLimit
	}

	var rows []db.MoodCheckin
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("checkin_date DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, storageError("list mood checkins", err)
	}
	return rows, nil
}

// upsert 在 tx 内执行插入或更新。sessionID 只在首次插入时写入，后续更新保留原关联。
func (s *MoodService) upsert(tx *gorm.DB, userID uuid.UUID, date time.Time, rating int, notes string, sessionID *uint) (*db.MoodCheckin, error) {
	record := db.MoodCheckin{
		UserID:            userID,
		RecoverySessionID: sessionID,
		CheckinDate:       date,
		MoodRating:        rating,
		Notes:             notes,
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "checkin_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"mood_rating", "notes", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, storageError("upsert mood checkin", err)
	}

	var stored db.MoodCheckin
	if err := tx.Where("user_id = ? AND checkin_date = ?", userID, date).First(&stored).Error; err != nil {
		return nil, storageError("reload mood checkin", err)
	}
	return &stored, nil
}

func validateMoodRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMoodRating, rating)
	}
	return nil
}
