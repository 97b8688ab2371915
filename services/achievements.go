package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AchievementService evaluates achievement requirements against a user's stats
// and level, advances progress counters and grants completion rewards exactly
// once per completion.
type AchievementService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Now    func() time.Time
}

func NewAchievementService(db *gorm.DB, ledger *LedgerService) *AchievementService {
	return &AchievementService{DB: db, Ledger: ledger, Now: time.Now}
}

// ProgressUpdate is one stat increment of the batch path.
type ProgressUpdate struct {
	ExternalUserID string `json:"external_user_id"`
	Metric         string `json:"metric"`
	Delta          int64  `json:"delta"`
}

type earnedEntry struct {
	achievement models.Achievement
	firstTime   bool
}

// CheckAchievements re-evaluates every active achievement for the user and
// returns the ones newly earned by this call. Re-checking an already completed,
// non-repeatable achievement grants nothing.
func (s *AchievementService) CheckAchievements(externalUserID string) ([]models.Achievement, error) {
	achievements, err := s.activeAchievements()
	if err != nil {
		return nil, err
	}
	if _, err := s.Ledger.EnsureProgression(externalUserID); err != nil {
		return nil, err
	}

	var earned []earnedEntry
	_, err = mutateProgression(s.DB, externalUserID, func(prog *models.UserProgression) error {
		earned = s.evaluateAll(prog, achievements)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpGlobalCounters(earned)

	result := make([]models.Achievement, 0, len(earned))
	for _, e := range earned {
		result = append(result, e.achievement)
	}
	return result, nil
}

// UpdateProgress applies a batch of stat increments, grouped by user so each
// user costs one read-modify-write cycle, then runs the same completion rule
// as CheckAchievements.
func (s *AchievementService) UpdateProgress(updates []ProgressUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	achievements, err := s.activeAchievements()
	if err != nil {
		return err
	}

	grouped := map[string][]ProgressUpdate{}
	var order []string
	for _, u := range updates {
		if _, seen := grouped[u.ExternalUserID]; !seen {
			order = append(order, u.ExternalUserID)
		}
		grouped[u.ExternalUserID] = append(grouped[u.ExternalUserID], u)
	}

	for _, userID := range order {
		if _, err := s.Ledger.EnsureProgression(userID); err != nil {
			return err
		}
		var earned []earnedEntry
		_, err := mutateProgression(s.DB, userID, func(prog *models.UserProgression) error {
			for _, u := range grouped[userID] {
				prog.Stats[u.Metric] += u.Delta
			}
			earned = s.evaluateAll(prog, achievements)
			return nil
		})
		if err != nil {
			return fmt.Errorf("progress batch for user %s: %w", userID, err)
		}
		s.bumpGlobalCounters(earned)
	}
	return nil
}

func (s *AchievementService) activeAchievements() ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := s.DB.Where("is_active = ?", true).Order("code ASC").Find(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}

// evaluateAll mutates the in-memory progression: progress counters, cooldown
// resets, completion flags and reward grants. The caller persists the record
// in one write.
func (s *AchievementService) evaluateAll(prog *models.UserProgression, achievements []models.Achievement) []earnedEntry {
	now := s.Now()
	var earned []earnedEntry
	for i := range achievements {
		ach := &achievements[i]
		completedNow, firstTime := s.evaluate(prog, ach, now)
		if completedNow {
			if ach.RewardXP > 0 {
				applyExperience(prog, ach.RewardXP, now)
			}
			for symbol, amount := range ach.RewardCurrency {
				applyCurrency(prog, symbol, amount)
			}
			earned = append(earned, earnedEntry{achievement: *ach, firstTime: firstTime})
		}
	}
	return earned
}

func (s *AchievementService) evaluate(prog *models.UserProgression, ach *models.Achievement, now time.Time) (completedNow, firstTime bool) {
	state := prog.Achievements[ach.ID]
	if state == nil {
		state = &models.AchievementState{MaxProgress: ach.MaxProgress}
		prog.Achievements[ach.ID] = state
	}

	if state.Completed {
		if !ach.IsRepeatable {
			return false, false
		}
		cooldown := time.Duration(ach.CooldownHours) * time.Hour
		if state.CompletedAt == nil || now.Sub(*state.CompletedAt) < cooldown {
			return false, false
		}
		// Cooldown elapsed: back into the pool with progress reset.
		state.Completed = false
		state.Progress = 0
		state.CompletedAt = nil
	}

	// Progress follows the least satisfied requirement; completion needs all
	// of them at 100%.
	frac := requirementSatisfaction(prog, ach.Requirements)
	state.Progress = int(math.Floor(frac * float64(ach.MaxProgress)))
	if state.Progress < ach.MaxProgress {
		return false, false
	}

	state.Progress = ach.MaxProgress
	state.Completed = true
	at := now
	state.CompletedAt = &at
	state.TimesCompleted++
	return true, state.TimesCompleted == 1
}

func requirementSatisfaction(prog *models.UserProgression, reqs []models.Requirement) float64 {
	if len(reqs) == 0 {
		return 0
	}
	minFrac := 1.0
	for _, r := range reqs {
		if f := r.Satisfaction(metricValue(prog, r.Metric)); f < minFrac {
			minFrac = f
		}
	}
	return minFrac
}

func metricValue(prog *models.UserProgression, metric string) int64 {
	if metric == "level" {
		return int64(prog.Level)
	}
	return prog.Stats[metric]
}

// bumpGlobalCounters updates the aggregate analytics on the achievement rows
// after the per-user write committed. Failures are logged, not propagated;
// analytics never roll back a grant.
func (s *AchievementService) bumpGlobalCounters(earned []earnedEntry) {
	for _, e := range earned {
		updates := map[string]interface{}{"times_earned": gorm.Expr("times_earned + 1")}
		if e.firstTime {
			updates["unique_earners"] = gorm.Expr("unique_earners + 1")
		}
		if err := s.DB.Model(&models.Achievement{}).
			Where("id = ?", e.achievement.ID).
			UpdateColumns(updates).Error; err != nil {
			log.Printf("⚠️ Failed to bump counters for achievement %s: %v", e.achievement.Code, err)
		}
	}
}

// CreateAchievement publishes a new template after construction-time
// validation of the requirement list.
func (s *AchievementService) CreateAchievement(ach *models.Achievement) error {
	if err := ach.Validate(); err != nil {
		return err
	}
	if ach.ID == "" {
		ach.ID = uuid.NewString()
	}
	return s.DB.Create(ach).Error
}

// ListAchievements returns the active catalog.
func (s *AchievementService) ListAchievements() ([]models.Achievement, error) {
	return s.activeAchievements()
}

// UserAchievements pairs the catalog with the user's per-achievement state.
func (s *AchievementService) UserAchievements(externalUserID string) ([]models.Achievement, map[string]*models.AchievementState, error) {
	achievements, err := s.activeAchievements()
	if err != nil {
		return nil, nil, err
	}
	var prog models.UserProgression
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return achievements, map[string]*models.AchievementState{}, nil
		}
		return nil, nil, err
	}
	states := prog.Achievements
	if states == nil {
		states = map[string]*models.AchievementState{}
	}
	return achievements, states, nil
}
