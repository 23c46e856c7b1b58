package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/clock"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/metrics"
	"gorm.io/gorm"
)

// DefaultTargetDays 在开启周期未指定目标天数时使用
const DefaultTargetDays = 30

const maxSessionHistoryLimit = 100

// SessionService 负责戒断周期的生命周期与连续天数计算
// 每个用户同一时间最多一个进行中的周期，由部分唯一索引兜底
type SessionService struct {
	db    *gorm.DB
	clock clock.Clock
	moods *MoodService
	log   *logging.Logger
}

// SessionInput 定义开启周期时的输入
type SessionInput struct {
	AddictionTypeID uint
	TargetDays      int
	Notes           string
}

// CheckinInput 定义每日打卡输入
type CheckinInput struct {
	MoodRating int
	Notes      string
}

// SessionView 附带按今天计算的进度
type SessionView struct {
	Session     db.RecoverySession
	ElapsedDays int
	Progress    float64
}

// CheckinResult 返回打卡记录以及被更新的周期（无进行中周期时为 nil）
type CheckinResult struct {
	Checkin db.MoodCheckin
	Session *db.RecoverySession
}

// NewSessionService 构造 SessionService
func NewSessionService(gdb *gorm.DB, clk clock.Clock, moods *MoodService, log *logging.Logger) *SessionService {
	return &SessionService{
		db:    gdb,
		clock: clk,
		moods: moods,
		log:   logging.OrNop(log).With("service", "SessionService"),
	}
}

// ComputeElapsedDays 返回从 start 到 today 经过的日历天数
func ComputeElapsedDays(start, today time.Time) int {
	return clock.DaysBetween(start, today)
}

// ComputeProgress 返回目标完成百分比，上限 100
func ComputeProgress(elapsedDays, targetDays int) float64 {
	if targetDays <= 0 {
		return 0
	}
	return math.Min(float64(elapsedDays)/float64(targetDays)*100, 100)
}

// Start 为用户开启新的戒断周期
func (s *SessionService) Start(ctx context.Context, userID uuid.UUID, input SessionInput) (*db.RecoverySession, error) {
	if input.TargetDays < 0 {
		return nil, ErrInvalidTargetDays
	}
	targetDays := input.TargetDays
	if targetDays == 0 {
		targetDays = DefaultTargetDays
	}

	var addiction db.AddictionType
	if err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", input.AddictionTypeID, true).
		First(&addiction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddictionTypeNotFound
		}
		return nil, storageError("find addiction type", err)
	}

	session := db.RecoverySession{
		UserID:          userID,
		AddictionTypeID: addiction.ID,
		StartDate:       s.clock.Today(),
		IsActive:        true,
		TargetDays:      targetDays,
		Notes:           sanitizeNotes(input.Notes),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&db.RecoverySession{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Count(&active).Error; err != nil {
			return storageError("count active sessions", err)
		}
		if active > 0 {
			return ErrActiveSessionExists
		}

		if err := tx.Create(&session).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrActiveSessionExists
			}
			return storageError("create recovery session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSessionEvent("started")
	s.log.Info("recovery session started",
		"user_id", userID,
		"session_id", session.ID,
		"addiction_type_id", addiction.ID,
		"target_days", targetDays,
	)
	return &session, nil
}

// End 结束用户自己的进行中周期；notes 非空时覆盖原备注
func (s *SessionService) End(ctx context.Context, userID uuid.UUID, sessionID uint, notes string) (*db.RecoverySession, error) {
	today := s.clock.Today()
	var session db.RecoverySession

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return storageError("find recovery session", err)
		}
		if !session.IsActive {
			return ErrSessionAlreadyEnded
		}

		updates := map[string]interface{}{
			"is_active": false,
			"end_date":  today,
		}
		if cleaned := sanitizeNotes(notes); cleaned != "" {
			updates["notes"] = cleaned
		}

		result := tx.Model(&db.RecoverySession{}).
			Where("id = ? AND is_active = ?", session.ID, true).
			Updates(updates)
		if result.Error != nil {
			return storageError("end recovery session", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionAlreadyEnded
		}

		if err := tx.First(&session, session.ID).Error; err != nil {
			return storageError("reload recovery session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSessionEvent("ended")
	s.log.Info("recovery session ended", "user_id", userID, "session_id", session.ID)
	return &session, nil
}

// Current 返回最近创建的进行中周期，不存在时返回 nil, nil
func (s *SessionService) Current(ctx context.Context, userID uuid.UUID) (*SessionView, error) {
	session, err := findActiveSession(s.db.WithContext(ctx), userID)
	if err != nil || session == nil {
		return nil, err
	}
	return s.view(*session), nil
}

// History 按开始时间倒序返回用户的全部周期
func (s *SessionService) History(ctx context.Context, userID uuid.UUID, limit int) ([]SessionView, error) {
	if limit <= 0 || limit > maxSessionHistoryLimit {
		limit = maxSessionHistoryLimit
	}

	var sessions []db.RecoverySession
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, storageError("list recovery sessions", err)
	}

	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, *s.view(session))
	}
	return views, nil
}

// Checkin 写入今天的心情，并在存在进行中周期时刷新连续天数
func (s *SessionService) Checkin(ctx context.Context, userID uuid.UUID, input CheckinInput) (*CheckinResult, error) {
	if err := validateMoodRating(input.MoodRating); err != nil {
		return nil, err
	}

	today := s.clock.Today()
	notes := sanitizeNotes(input.Notes)
	result := &CheckinResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := findActiveSession(tx, userID)
		if err != nil {
			return err
		}

		var sessionID *uint
		if session != nil {
			id := session.ID
			sessionID = &id
		}

		checkin, err := s.moods.upsert(tx, userID, today, input.MoodRating, notes, sessionID)
		if err != nil {
			return err
		}
		result.Checkin = *checkin

		if session == nil {
			return nil
		}

		current := ComputeElapsedDays(session.StartDate, today)
		longest := session.LongestStreak
		if current > longest {
			longest = current
		}
		if err := tx.Model(&db.RecoverySession{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"current_streak": current,
				"longest_streak": longest,
			}).Error; err != nil {
			return storageError("update streak", err)
		}

		session.CurrentStreak = current
		session.LongestStreak = longest
		result.Session = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCheckin()
	if result.Session != nil {
		s.log.Debug("checkin recorded",
			"user_id", userID,
			"session_id", result.Session.ID,
			"current_streak", result.Session.CurrentStreak,
		)
	}
	return result, nil
}

func (s *SessionService) view(session db.RecoverySession) *SessionView {
	end := s.clock.Today()
	if !session.IsActive && session.EndDate != nil {
		end = *session.EndDate
	}
	elapsed := ComputeElapsedDays(session.StartDate, end)
	return &SessionView{
		Session:     session,
		ElapsedDays: elapsed,
		Progress:    ComputeProgress(elapsed, session.TargetDays),
	}
}

func findActiveSession(tx *gorm.DB, userID uuid.UUID) (*db.RecoverySession, error) {
	var session db.RecoverySession
	err := tx.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC, id DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find active session", err)
	}
	return &session, nil
}
