package services

import (
	"errors"
	"testing"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func mustCreateTemplate(t *testing.T, svc *ChallengeService, tpl models.ChallengeTemplate) models.ChallengeTemplate {
	t.Helper()
	tpl.IsActive = true
	if err := svc.CreateTemplate(&tpl); err != nil {
		t.Fatalf("create template %s: %v", tpl.Name, err)
	}
	return tpl
}

func newChallengeService(t *testing.T) *ChallengeService {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	tracker := NewAchievementService(db, ledger)
	return NewChallengeService(db, ledger, tracker, testRand())
}

func TestGenerateNoEligibleTemplate(t *testing.T) {
	svc := newChallengeService(t)

	mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name:          "High Bar",
		Type:          models.ChallengeDaily,
		Difficulty:    "hard",
		MinLevel:      20,
		EstimatedMins: 30,
		MaxScore:      100,
	})

	_, err := svc.Generate(GenerationContext{
		ExternalUserID:       "user-1",
		UserLevel:            1,
		DifficultyPreference: "hard",
		TimeAvailableMins:    60,
	})
	if !errors.Is(err, ErrNoEligibleTemplate) {
		t.Fatalf("error = %v, want ErrNoEligibleTemplate", err)
	}
}

func TestGenerateScalesRewardsAndWindow(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name:          "Focus Sprint",
		Type:          models.ChallengeDaily,
		Difficulty:    "easy",
		MinLevel:      1,
		EstimatedMins: 30,
		BaseXP:        100,
		BaseCurrency:  map[string]int64{PrimaryCurrency: 40},
		MaxScore:      100,
	})

	challenge, err := svc.Generate(GenerationContext{
		ExternalUserID:       "user-1",
		UserLevel:            5,
		DifficultyPreference: "easy",
		TimeAvailableMins:    45,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// scale = 1 + 0.1×5
	if challenge.RewardXP != 150 {
		t.Errorf("reward xp = %d, want 150", challenge.RewardXP)
	}
	if got := challenge.RewardCurrency[PrimaryCurrency]; got != 60 {
		t.Errorf("reward coins = %d, want 60", got)
	}
	if !challenge.EndDate.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("end date = %v, want start+24h", challenge.EndDate)
	}
	if !challenge.IsActive {
		t.Error("generated challenge not active")
	}
}

func TestGenerateWindowByType(t *testing.T) {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		typ  models.ChallengeType
		want time.Time
	}{
		{models.ChallengeDaily, start.Add(24 * time.Hour)},
		{models.ChallengeWeekly, start.Add(7 * 24 * time.Hour)},
		{models.ChallengeMonthly, start.AddDate(0, 1, 0)},
		{models.ChallengeSpecial, start.Add(time.Hour)},
	}
	for _, tt := range tests {
		if got := windowEnd(tt.typ, start); !got.Equal(tt.want) {
			t.Errorf("windowEnd(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestCompleteRejectsOutOfRangeScore(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 100, MaxScore: 100,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	for _, score := range []int64{-1, 101} {
		if _, err := svc.Complete("user-1", challenge.ID, score); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Complete(score=%d) error = %v, want ErrInvalidScore", score, err)
		}
	}
}

func TestCompleteGrantsScoreScaledReward(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)
	svc.Ledger.Now = fixedClock(now)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 80, MaxScore: 100, AttemptsPerUser: 3,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	result, err := svc.Complete("user-1", challenge.ID, 50)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("rejected: %s", result.Reason)
	}
	// multiplier = min(50/100, 2) = 0.5 against the instance's scaled base.
	if result.Reward.XP != challenge.RewardXP/2 {
		t.Errorf("reward xp = %d, want %d", result.Reward.XP, challenge.RewardXP/2)
	}

	prog := mustProgression(t, challengeDB(svc), "user-1")
	if got := prog.Stats["challenges_completed"]; got != 1 {
		t.Errorf("challenges_completed = %d, want 1", got)
	}
	if got := prog.Stats["easy_challenges_completed"]; got != 1 {
		t.Errorf("easy_challenges_completed = %d, want 1", got)
	}
}

func TestCompleteAttemptLimit(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "One Shot", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 10, MaxScore: 100, AttemptsPerUser: 1,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	first, err := svc.Complete("user-1", challenge.ID, 80)
	if err != nil || !first.Accepted {
		t.Fatalf("first attempt: result=%+v err=%v", first, err)
	}

	second, err := svc.Complete("user-1", challenge.ID, 90)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if second.Accepted {
		t.Fatal("second attempt accepted past the limit")
	}
	if second.Reward != nil {
		t.Error("rejected attempt carries a reward")
	}
}

func TestCompleteWindowClosed(t *testing.T) {
	svc := newChallengeService(t)
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(start)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 10, MaxScore: 100,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	svc.Now = fixedClock(start.Add(25 * time.Hour))
	result, err := svc.Complete("user-1", challenge.ID, 10)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Accepted {
		t.Fatal("completion accepted after the window closed")
	}
}

func TestAverageScoreIncrementalMean(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 10, MaxScore: 100, AttemptsPerUser: 1,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	for i, score := range []int64{40, 60} {
		user := []string{"user-1", "user-2"}[i]
		if result, err := svc.Complete(user, challenge.ID, score); err != nil || !result.Accepted {
			t.Fatalf("complete %s: result=%+v err=%v", user, result, err)
		}
	}

	var stored models.Challenge
	if err := challengeDB(svc).Where("id = ?", challenge.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload challenge: %v", err)
	}
	if stored.Completions != 2 {
		t.Errorf("completions = %d, want 2", stored.Completions)
	}
	if stored.AverageScore != 50 {
		t.Errorf("average score = %f, want 50", stored.AverageScore)
	}
}

func TestDeactivateExpired(t *testing.T) {
	svc := newChallengeService(t)
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(start)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 10, MaxScore: 100,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	svc.Now = fixedClock(start.Add(25 * time.Hour))
	n, err := svc.DeactivateExpired()
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if n != 1 {
		t.Errorf("deactivated %d, want 1", n)
	}

	var stored models.Challenge
	if err := challengeDB(svc).Where("id = ?", challenge.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.IsActive {
		t.Error("expired challenge still active")
	}
}

func TestCompleteDailyChallengeAdvancesRepeatableAchievement(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	ach := mustCreateAchievement(t, challengeDB(svc), models.Achievement{
		Code: "DAILY_DEVOTION",
		Name: "Daily Devotion",
		Requirements: []models.Requirement{
			{Metric: "daily_challenges_completed", Comparator: models.ComparatorGTE, Target: 1},
		},
		RewardXP:      25,
		IsRepeatable:  true,
		CooldownHours: 24,
	})

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Daily Focus Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 50, MaxScore: 100, AttemptsPerUser: 3,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)
	if challenge.Type != models.ChallengeDaily {
		t.Fatalf("instance type = %q, want daily carried from the template", challenge.Type)
	}

	result, err := svc.Complete("user-1", challenge.ID, 80)
	if err != nil || !result.Accepted {
		t.Fatalf("complete: result=%+v err=%v", result, err)
	}

	prog := mustProgression(t, challengeDB(svc), "user-1")
	if got := prog.Stats["daily_challenges_completed"]; got != 1 {
		t.Errorf("daily_challenges_completed = %d, want 1", got)
	}
	state := prog.Achievements[ach.ID]
	if state == nil {
		t.Fatal("no achievement state recorded for the daily repeatable")
	}
	if !state.Completed || state.TimesCompleted != 1 {
		t.Errorf("state = completed=%t times=%d, want completed once", state.Completed, state.TimesCompleted)
	}
}

func TestJoinIdempotent(t *testing.T) {
	svc := newChallengeService(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	tpl := mustCreateTemplate(t, svc, models.ChallengeTemplate{
		Name: "Sprint", Type: models.ChallengeDaily, Difficulty: "easy",
		MinLevel: 1, EstimatedMins: 30, BaseXP: 10, MaxScore: 100,
	})
	challenge := mustGenerate(t, svc, tpl.Difficulty)

	for i := 0; i < 2; i++ {
		joined, err := svc.Join("user-1", challenge.ID)
		if err != nil {
			t.Fatalf("join #%d: %v", i+1, err)
		}
		if !joined {
			t.Fatalf("join #%d refused", i+1)
		}
	}

	var count int64
	if err := challengeDB(svc).Model(&models.ChallengeAttempt{}).
		Where("challenge_id = ?", challenge.ID).Count(&count).Error; err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if count != 1 {
		t.Errorf("attempt rows = %d, want 1", count)
	}
}

func mustGenerate(t *testing.T, svc *ChallengeService, difficulty string) *models.Challenge {
	t.Helper()
	challenge, err := svc.Generate(GenerationContext{
		ExternalUserID:       uuid.NewString(),
		UserLevel:            1,
		DifficultyPreference: difficulty,
		TimeAvailableMins:    600,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return challenge
}

func challengeDB(svc *ChallengeService) *gorm.DB { return svc.DB }
