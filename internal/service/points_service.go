package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/db"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelStep 表示积分达到 Threshold 后对应的等级。
type LevelStep struct {
	Threshold int
	Level     int
}

// LevelTable 是按阈值升序排列的等级表。
type LevelTable []LevelStep

// DefaultLevelTable 返回默认奖励曲线：0→1, 50→2, 150→3, 300→4, 500→5。
func DefaultLevelTable() LevelTable {
	return LevelTable{
		{Threshold: 0, Level: 1},
		{Threshold: 50, Level: 2},
		{Threshold: 150, Level: 3},
		{Threshold: 300, Level: 4},
		{Threshold: 500, Level: 5},
	}
}

// NewLevelTable 校验并返回等级表：阈值与等级都必须严格递增，且首档阈值为 0。
func NewLevelTable(steps []LevelStep) (LevelTable, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: level table is empty", ErrValidation)
	}

	table := make(LevelTable, len(steps))
	copy(table, steps)
	sort.SliceStable(table, func(i, j int) bool { return table[i].Threshold < table[j].Threshold })

	if table[0].Threshold != 0 {
		return nil, fmt.Errorf("%w: level table must start at 0 points", ErrValidation)
	}
	for i := 1; i < len(table); i++ {
		if table[i].Threshold == table[i-1].Threshold || table[i].Level <= table[i-1].Level {
			return nil, fmt.Errorf("%w: level table must be strictly ascending", ErrValidation)
		}
	}
	return table, nil
}

// Level 返回阈值不超过 total 的最高等级。
func (t LevelTable) Level(total int) int {
	level := 1
	if len(t) > 0 {
		level = t[0].Level
	}
	for _, step := range t {
		if total < step.Threshold {
			break
		}
		level = step.Level
	}
	return level
}

// NextThreshold 返回下一档所需的累计积分，已满级时 ok 为 false。
func (t LevelTable) NextThreshold(total int) (threshold int, ok bool) {
	for _, step := range t {
		if step.Threshold > total {
			return step.Threshold, true
		}
	}
	return 0, false
}

// PointsService 管理用户积分账户。积分只会在 TaskService.Complete 的事务内增加。
type PointsService struct {
	db     *gorm.DB
	levels LevelTable
	log    *logging.Logger
}

// PointsSummary 是积分账户的只读视图。
type PointsSummary struct {
	UserID       uuid.UUID
	TotalPoints  int
	CurrentLevel int
	// NextLevelAt 为下一等级所需累计积分，满级时为 0
	NextLevelAt int
	MaxLevel    bool
}

// NewPointsService 构造 PointsService，levels 为空时使用默认等级表。
func NewPointsService(gdb *gorm.DB, levels LevelTable, log *logging.Logger) *PointsService {
	if len(levels) == 0 {
		levels = DefaultLevelTable()
	}
	return &PointsService{db: gdb, levels: levels, log: logging.OrNop(log).With("service", "PointsService")}
}

// Levels 返回当前使用的等级表。
func (s *PointsService) Levels() LevelTable {
	return s.levels
}

// Ensure 幂等地为用户创建零值账户。
func (s *PointsService) Ensure(ctx context.Context, userID uuid.UUID) (*db.PointsAccount, error) {
	tx := s.db.WithContext(ctx)
	if err := s.ensure(tx, userID); err != nil {
		return nil, err
	}

	var account db.PointsAccount
	if err := tx.Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, storageError("reload points account", err)
	}
	return &account, nil
}

// Get 返回用户积分概况，账户尚未创建时返回零值视图而不写库。
func (s *PointsService) Get(ctx context.Context, userID uuid.UUID) (*PointsSummary, error) {
	var account db.PointsAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = db.PointsAccount{UserID: userID, CurrentLevel: s.levels.Level(0)}
	case err != nil:
		return nil, storageError("get points account", err)
	}

	summary := &PointsSummary{
		UserID:       userID,
		TotalPoints:  account.TotalPoints,
		CurrentLevel: account.CurrentLevel,
	}
	if next, ok := s.levels.NextThreshold(account.TotalPoints); ok {
		summary.NextLevelAt = next
	} else {
		summary.MaxLevel = true
	}
	return summary, nil
}

func (s *PointsService) ensure(tx *gorm.DB, userID uuid.UUID) error {
	account := db.PointsAccount{UserID: userID, CurrentLevel: s.levels.Level(0)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&account).Error; err != nil {
		return storageError("ensure points account", err)
	}
	return nil
}

// credit 在调用方事务 tx 内为用户加分并重算等级，返回更新后的账户与加分前的等级。
func (s *PointsService) credit(tx *gorm.DB, userID uuid.UUID, points int) (*db.PointsAccount, int, error) {
	if err := s.ensure(tx, userID); err != nil {
		return nil, 0, err
	}

	var account db.PointsAccount
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, 0, storageError("lock points account", err)
	}

	previousLevel := account.CurrentLevel
	total := account.TotalPoints + points
	level := s.levels.Level(total)

	if err := tx.Model(&db.PointsAccount{}).
		Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"total_points":  gorm.Expr("total_points + ?", points),
			"current_level": level,
		}).Error; err != nil {
		return nil, 0, storageError("credit points", err)
	}

	account.TotalPoints = total
	account.CurrentLevel = level
	return &account, previousLevel, nil
}
