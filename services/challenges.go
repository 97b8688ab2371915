package services

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ChallengeService instantiates time-bounded challenges from the template
// registry and converts raw completion scores into scaled rewards.
type ChallengeService struct {
	DB      *gorm.DB
	Ledger  *LedgerService
	Tracker *AchievementService
	Now     func() time.Time
	Rand    *rand.Rand
}

func NewChallengeService(db *gorm.DB, ledger *LedgerService, tracker *AchievementService, rng *rand.Rand) *ChallengeService {
	return &ChallengeService{DB: db, Ledger: ledger, Tracker: tracker, Now: time.Now, Rand: rng}
}

// GenerationContext is what the caller knows about the requesting user.
type GenerationContext struct {
	ExternalUserID       string `json:"external_user_id"`
	UserLevel            int    `json:"user_level"`
	DifficultyPreference string `json:"difficulty_preference"`
	TimeAvailableMins    int    `json:"time_available_mins"`
}

// CompletionResult is the typed outcome of Complete. Expected rejections
// (window closed, attempt limit) come back with Accepted=false and a reason,
// not as errors.
type CompletionResult struct {
	Accepted bool           `json:"accepted"`
	Reason   string         `json:"reason,omitempty"`
	Reward   *RewardBundle  `json:"reward,omitempty"`
	Progress *LevelProgress `json:"progress,omitempty"`
}

// Generate picks uniformly at random among templates passing the three hard
// filters (min level, difficulty, estimated duration) and stamps an instance
// with level-scaled rewards and a type-derived schedule window.
func (s *ChallengeService) Generate(ctx GenerationContext) (*models.Challenge, error) {
	var templates []models.ChallengeTemplate
	err := s.DB.
		Where("is_active = ? AND min_level <= ? AND difficulty = ? AND estimated_mins <= ?",
			true, ctx.UserLevel, ctx.DifficultyPreference, ctx.TimeAvailableMins).
		Order("code ASC").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: level=%d difficulty=%s time=%dm",
			ErrNoEligibleTemplate, ctx.UserLevel, ctx.DifficultyPreference, ctx.TimeAvailableMins)
	}

	tpl := templates[s.Rand.Intn(len(templates))]
	scale := 1 + float64(ctx.UserLevel)*0.1
	now := s.Now()

	challenge := models.Challenge{
		ID:              uuid.NewString(),
		TemplateID:      tpl.ID,
		CreatedBy:       ctx.ExternalUserID,
		Name:            tpl.Name,
		Description:     tpl.Description,
		Type:            tpl.Type,
		Difficulty:      tpl.Difficulty,
		StartDate:       now,
		EndDate:         windowEnd(tpl.Type, now),
		RewardXP:        int64(math.Round(float64(tpl.BaseXP) * scale)),
		RewardCurrency:  scaleCurrency(tpl.BaseCurrency, scale),
		Multiplier:      tpl.RewardMultiplier,
		MinLevel:        tpl.MinLevel,
		MaxScore:        tpl.MaxScore,
		AttemptsPerUser: tpl.AttemptsPerUser,
		IsActive:        true,
	}
	if challenge.Multiplier <= 0 {
		challenge.Multiplier = 1
	}
	if err := s.DB.Create(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func windowEnd(t models.ChallengeType, start time.Time) time.Time {
	switch t {
	case models.ChallengeDaily:
		return start.Add(24 * time.Hour)
	case models.ChallengeWeekly:
		return start.Add(7 * 24 * time.Hour)
	case models.ChallengeMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.Add(time.Hour)
	}
}

func scaleCurrency(base map[string]int64, scale float64) map[string]int64 {
	scaled := make(map[string]int64, len(base))
	for symbol, amount := range base {
		scaled[symbol] = int64(math.Round(float64(amount) * scale))
	}
	return scaled
}

// Join registers a user as a participant. Returns false when the window is
// closed or the user is below the level floor.
func (s *ChallengeService) Join(externalUserID, challengeID string) (bool, error) {
	challenge, err := s.getChallenge(challengeID)
	if err != nil {
		return false, err
	}
	now := s.Now()
	if !challenge.IsActive || now.Before(challenge.StartDate) || !now.Before(challenge.EndDate) {
		return false, nil
	}
	prog, err := s.Ledger.EnsureProgression(externalUserID)
	if err != nil {
		return false, err
	}
	if prog.Level < challenge.MinLevel {
		return false, nil
	}

	attempt := models.ChallengeAttempt{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		UserID:      externalUserID,
	}
	if err := s.DB.Create(&attempt).Error; err != nil {
		// Already joined; the unique index makes Join idempotent.
		var existing models.ChallengeAttempt
		if lookupErr := s.DB.Where("challenge_id = ? AND user_id = ?", challengeID, externalUserID).
			First(&existing).Error; lookupErr == nil {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// Complete validates the score, enforces the per-user attempt cap, updates the
// challenge's running statistics and grants the score-scaled reward bundle.
func (s *ChallengeService) Complete(externalUserID, challengeID string, finalScore int64) (*CompletionResult, error) {
	challenge, err := s.getChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if finalScore < 0 || finalScore > challenge.MaxScore {
		return nil, fmt.Errorf("%w: score %d not in [0, %d]", ErrInvalidScore, finalScore, challenge.MaxScore)
	}

	result, err := s.recordAttempt(challenge.ID, externalUserID, finalScore)
	if err != nil {
		return nil, err
	}
	if !result.Accepted {
		return result, nil
	}

	// min(score/maxScore, 2) × template multiplier
	multiplier := 2.0
	if challenge.MaxScore > 0 {
		multiplier = math.Min(float64(finalScore)/float64(challenge.MaxScore), 2)
	}
	multiplier *= challenge.Multiplier

	bundle := RewardBundle{
		XP:       int64(math.Round(float64(challenge.RewardXP) * multiplier)),
		Currency: scaleCurrency(challenge.RewardCurrency, multiplier),
		Stats:    map[string]int64{"challenges_completed": 1},
	}
	if challenge.Difficulty != "" {
		bundle.Stats[challenge.Difficulty+"_challenges_completed"] = 1
	}
	// Type counters feed schedule-based achievements (e.g. daily repeatables).
	if challenge.Type != "" {
		bundle.Stats[string(challenge.Type)+"_challenges_completed"] = 1
	}

	progress, err := s.Ledger.GrantBundle(externalUserID, bundle, "challenge_"+challenge.ID)
	if err != nil {
		return nil, err
	}
	result.Reward = &bundle
	result.Progress = progress

	// Completion counters can unlock achievements immediately.
	if s.Tracker != nil {
		if _, err := s.Tracker.CheckAchievements(externalUserID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// recordAttempt is the atomic half of Complete: attempt-cap check, attempt
// counter bump and the online mean update of the challenge statistics, all
// behind the challenge's version check.
func (s *ChallengeService) recordAttempt(challengeID, externalUserID string, finalScore int64) (*CompletionResult, error) {
	now := s.Now()
	for attempt := 0; attempt < casRetries; attempt++ {
		var result CompletionResult
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var challenge models.Challenge
			if err := tx.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
				return err
			}
			if !challenge.IsActive || now.Before(challenge.StartDate) || !now.Before(challenge.EndDate) {
				result = CompletionResult{Accepted: false, Reason: "challenge window closed"}
				return nil
			}

			var att models.ChallengeAttempt
			err := tx.Where("challenge_id = ? AND user_id = ?", challengeID, externalUserID).First(&att).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				att = models.ChallengeAttempt{
					ID:          uuid.NewString(),
					ChallengeID: challengeID,
					UserID:      externalUserID,
				}
			} else if err != nil {
				return err
			}

			if att.Attempts >= challenge.AttemptsPerUser {
				result = CompletionResult{Accepted: false, Reason: "attempt limit reached"}
				return nil
			}

			att.Attempts++
			att.LastScore = finalScore
			if finalScore > att.BestScore {
				att.BestScore = finalScore
			}
			at := now
			att.CompletedAt = &at
			if err := tx.Save(&att).Error; err != nil {
				return err
			}

			// newAvg = oldAvg + (score - oldAvg) / n
			n := challenge.Completions + 1
			newAvg := challenge.AverageScore + (float64(finalScore)-challenge.AverageScore)/float64(n)
			res := tx.Model(&models.Challenge{}).
				Where("id = ? AND version = ?", challenge.ID, challenge.Version).
				UpdateColumns(map[string]interface{}{
					"completions":   n,
					"average_score": newAvg,
					"version":       challenge.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errRetryCAS
			}
			result = CompletionResult{Accepted: true}
			return nil
		})
		if errors.Is(err, errRetryCAS) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &result, nil
	}
	return nil, ErrConflict
}

func (s *ChallengeService) getChallenge(challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := s.DB.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
		}
		return nil, err
	}
	return &challenge, nil
}

// ActiveChallenges lists open instances, newest first.
func (s *ChallengeService) ActiveChallenges() ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.Where("is_active = ? AND end_date > ?", true, s.Now()).
		Order("created_at DESC").
		Find(&challenges).Error
	return challenges, err
}

// CreateTemplate registers a new template; the code is slugified from the name
// when absent.
func (s *ChallengeService) CreateTemplate(tpl *models.ChallengeTemplate) error {
	if tpl.Name == "" {
		return fmt.Errorf("template name required")
	}
	if tpl.MaxScore <= 0 {
		return fmt.Errorf("template %s: max score must be positive", tpl.Name)
	}
	if tpl.AttemptsPerUser < 1 {
		tpl.AttemptsPerUser = 1
	}
	if tpl.Code == "" {
		tpl.Code = slug.Make(tpl.Name)
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	return s.DB.Create(tpl).Error
}

// DeactivateExpired sweeps instances whose window has passed.
func (s *ChallengeService) DeactivateExpired() (int64, error) {
	res := s.DB.Model(&models.Challenge{}).
		Where("is_active = ? AND end_date <= ?", true, s.Now()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
