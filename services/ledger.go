package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Level curve and economy constants (tunable via config/env later)
const (
	BaseXP       = 100
	GrowthFactor = 1.5
	MaxLevel     = 100

	PrimaryCurrency   = "coins"
	SecondaryCurrency = "gems"

	SeedCoinGrant       = 100 // granted on first gamification interaction
	LevelUpCoinPerLevel = 50  // level-up bonus: 50 × new level
)

// LevelProgress is the snapshot returned after an XP mutation.
type LevelProgress struct {
	Level              int     `json:"level"`
	Experience         int64   `json:"experience"`
	ExperienceToNext   int64   `json:"experience_to_next"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// RewardBundle is a concrete grant: XP plus currency amounts, with optional
// stat counters bumped in the same write.
type RewardBundle struct {
	XP       int64            `json:"xp"`
	Currency map[string]int64 `json:"currency,omitempty"`
	Stats    map[string]int64 `json:"stats,omitempty"`
}

// LedgerService owns level, experience and currency balances. Every mutation
// is a versioned read-modify-write scoped to one user record.
type LedgerService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db, Now: time.Now}
}

// xpToNextLevel returns the XP required to clear the given level.
// L_n = floor(BaseXP * GrowthFactor^(n-1))
func xpToNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(BaseXP * math.Pow(GrowthFactor, float64(level-1))))
}

// mutateProgression runs fn against a fresh copy of the user's progression
// record and writes it back under an optimistic version check, retrying a
// bounded number of times on collision. fn returning an error aborts without
// writing.
func mutateProgression(db *gorm.DB, externalUserID string, fn func(*models.UserProgression) error) (*models.UserProgression, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		var prog models.UserProgression
		if err := db.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: progression for user %s", ErrNotFound, externalUserID)
			}
			return nil, err
		}
		if prog.Balances == nil {
			prog.Balances = map[string]int64{}
		}
		if prog.Stats == nil {
			prog.Stats = map[string]int64{}
		}
		if prog.Achievements == nil {
			prog.Achievements = map[string]*models.AchievementState{}
		}

		if err := fn(&prog); err != nil {
			return nil, err
		}

		prev := prog.Version
		prog.Version = prev + 1
		res := db.Model(&models.UserProgression{}).
			Where("id = ? AND version = ?", prog.ID, prev).
			Select("*").Omit("id", "external_user_id", "created_at", "deleted_at").
			Updates(&prog)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return &prog, nil
		}
	}
	return nil, ErrConflict
}

// EnsureProgression returns the user's progression record, creating it with
// defaults and the seed currency grant on first interaction (idempotent).
func (s *LedgerService) EnsureProgression(externalUserID string) (*models.UserProgression, error) {
	var prog models.UserProgression
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if err == nil {
		return &prog, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prog = models.UserProgression{
		ID:               uuid.NewString(),
		ExternalUserID:   externalUserID,
		Level:            1,
		ExperienceToNext: xpToNextLevel(1),
		Balances:         map[string]int64{PrimaryCurrency: SeedCoinGrant},
		Stats:            map[string]int64{},
		Achievements:     map[string]*models.AchievementState{},
	}
	if createErr := s.DB.Create(&prog).Error; createErr != nil {
		// Lost a creation race; the winner's row is authoritative.
		if err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
			return nil, createErr
		}
	}
	return &prog, nil
}

// AddExperience adds XP, clearing as many level thresholds as the amount
// covers and granting the per-level coin bonus. amount <= 0 is a caller
// contract violation.
func (s *LedgerService) AddExperience(externalUserID string, amount int64, source string) (*LevelProgress, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: xp amount %d (source %s)", ErrInvalidAmount, amount, source)
	}
	if _, err := s.EnsureProgression(externalUserID); err != nil {
		return nil, err
	}
	var lp LevelProgress
	_, err := mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		lp = applyExperience(prog, amount, s.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

// applyExperience is the in-memory half of AddExperience, shared with the
// achievement tracker and tournament orchestrator so reward grants compose
// into a single progression write.
func applyExperience(prog *models.UserProgression, amount int64, now time.Time) LevelProgress {
	prog.Experience += amount
	prog.TotalExperience += amount
	for prog.Experience >= prog.ExperienceToNext && prog.Level < MaxLevel {
		prog.Experience -= prog.ExperienceToNext
		prog.Level++
		prog.ExperienceToNext = xpToNextLevel(prog.Level)
		applyCurrency(prog, PrimaryCurrency, int64(LevelUpCoinPerLevel*prog.Level))
		at := now
		prog.LastLevelUpAt = &at
	}
	if prog.Experience >= prog.ExperienceToNext {
		// Parked at the level cap; overflow XP survives in TotalExperience.
		prog.Experience = prog.ExperienceToNext - 1
	}
	return levelSnapshot(prog)
}

func applyCurrency(prog *models.UserProgression, symbol string, amount int64) {
	if prog.Balances == nil {
		prog.Balances = map[string]int64{}
	}
	prog.Balances[symbol] += amount
}

func levelSnapshot(prog *models.UserProgression) LevelProgress {
	pct := 0.0
	if prog.ExperienceToNext > 0 {
		pct = float64(prog.Experience) / float64(prog.ExperienceToNext) * 100
	}
	return LevelProgress{
		Level:              prog.Level,
		Experience:         prog.Experience,
		ExperienceToNext:   prog.ExperienceToNext,
		ProgressPercentage: pct,
	}
}

// AddCurrency credits a single currency on a single user.
func (s *LedgerService) AddCurrency(externalUserID, symbol string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: currency amount %d", ErrInvalidAmount, amount)
	}
	if _, err := s.EnsureProgression(externalUserID); err != nil {
		return err
	}
	_, err := mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		applyCurrency(prog, symbol, amount)
		return nil
	})
	return err
}

// SpendCurrency debits a balance. Returns false without mutating anything when
// the balance cannot cover the amount; a false result is not an error.
func (s *LedgerService) SpendCurrency(externalUserID, symbol string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%w: currency amount %d", ErrInvalidAmount, amount)
	}
	_, err := mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		if prog.Balances[symbol] < amount {
			return errNoMutation
		}
		prog.Balances[symbol] -= amount
		return nil
	})
	if errors.Is(err, errNoMutation) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GrantBundle applies a whole reward bundle (XP, currencies, stat counters) in
// one progression write.
func (s *LedgerService) GrantBundle(externalUserID string, bundle RewardBundle, source string) (*LevelProgress, error) {
	if _, err := s.EnsureProgression(externalUserID); err != nil {
		return nil, err
	}
	var lp LevelProgress
	_, err := mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		if bundle.XP > 0 {
			lp = applyExperience(prog, bundle.XP, s.Now())
		} else {
			lp = levelSnapshot(prog)
		}
		for symbol, amount := range bundle.Currency {
			applyCurrency(prog, symbol, amount)
		}
		for metric, delta := range bundle.Stats {
			prog.Stats[metric] += delta
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

// AddStat bumps one stat counter; used by collaborating services to feed
// achievement metrics.
func (s *LedgerService) AddStat(externalUserID, metric string, delta int64) error {
	if _, err := s.EnsureProgression(externalUserID); err != nil {
		return err
	}
	_, err := mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		prog.Stats[metric] += delta
		return nil
	})
	return err
}
