package services

import (
	"testing"
	"time"

	"player-progression-system/models"
)

func TestCheckAchievementsEarnExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	tracker := NewAchievementService(db, ledger)

	ach := mustCreateAchievement(t, db, models.Achievement{
		Code: "FIRST_WIN",
		Name: "First Win",
		Requirements: []models.Requirement{
			{Metric: "matches_won", Comparator: models.ComparatorGTE, Target: 1},
		},
		RewardXP:       50,
		RewardCurrency: map[string]int64{PrimaryCurrency: 25},
	})

	if err := ledger.AddStat("user-1", "matches_won", 1); err != nil {
		t.Fatalf("add stat: %v", err)
	}

	earned, err := tracker.CheckAchievements("user-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(earned) != 1 || earned[0].Code != "FIRST_WIN" {
		t.Fatalf("earned = %v, want [FIRST_WIN]", earned)
	}

	prog := mustProgression(t, db, "user-1")
	if prog.Experience != 50 {
		t.Errorf("xp = %d, want 50", prog.Experience)
	}
	coinsAfterFirst := prog.Balances[PrimaryCurrency]

	// Re-checking a completed, non-repeatable achievement grants nothing.
	earned, err = tracker.CheckAchievements("user-1")
	if err != nil {
		t.Fatalf("re-check: %v", err)
	}
	if len(earned) != 0 {
		t.Fatalf("re-check earned %v, want none", earned)
	}
	prog = mustProgression(t, db, "user-1")
	if prog.Balances[PrimaryCurrency] != coinsAfterFirst {
		t.Errorf("coins changed on re-check: %d -> %d", coinsAfterFirst, prog.Balances[PrimaryCurrency])
	}

	var stored models.Achievement
	if err := db.Where("id = ?", ach.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload achievement: %v", err)
	}
	if stored.TimesEarned != 1 || stored.UniqueEarners != 1 {
		t.Errorf("global counters = %d/%d, want 1/1", stored.TimesEarned, stored.UniqueEarners)
	}
}

func TestProgressFollowsLeastSatisfiedRequirement(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	tracker := NewAchievementService(db, ledger)

	ach := mustCreateAchievement(t, db, models.Achievement{
		Code: "ALL_ROUNDER",
		Name: "All Rounder",
		Requirements: []models.Requirement{
			{Metric: "matches_won", Comparator: models.ComparatorGTE, Target: 10},
			{Metric: "challenges_completed", Comparator: models.ComparatorGTE, Target: 20},
		},
		MaxProgress: 20,
	})

	// First requirement fully met, second at 50%.
	if err := tracker.UpdateProgress([]ProgressUpdate{
		{ExternalUserID: "user-1", Metric: "matches_won", Delta: 10},
		{ExternalUserID: "user-1", Metric: "challenges_completed", Delta: 10},
	}); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	prog := mustProgression(t, db, "user-1")
	state := prog.Achievements[ach.ID]
	if state == nil {
		t.Fatal("no achievement state recorded")
	}
	if state.Progress != 10 {
		t.Errorf("progress = %d, want 10 (50%% of max)", state.Progress)
	}
	if state.Completed {
		t.Error("completed with an unmet requirement")
	}

	// Close the gap; completion requires every requirement at 100%.
	if err := tracker.UpdateProgress([]ProgressUpdate{
		{ExternalUserID: "user-1", Metric: "challenges_completed", Delta: 10},
	}); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	prog = mustProgression(t, db, "user-1")
	state = prog.Achievements[ach.ID]
	if !state.Completed || state.Progress != 20 {
		t.Errorf("state = completed=%t progress=%d, want completed at 20", state.Completed, state.Progress)
	}
}

func TestRepeatableAchievementCooldown(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	tracker := NewAchievementService(db, ledger)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tracker.Now = fixedClock(start)

	mustCreateAchievement(t, db, models.Achievement{
		Code: "DAILY_LOGIN",
		Name: "Daily Login",
		Requirements: []models.Requirement{
			{Metric: "logins", Comparator: models.ComparatorGTE, Target: 1},
		},
		RewardXP:      25,
		IsRepeatable:  true,
		CooldownHours: 24,
	})

	if err := ledger.AddStat("user-1", "logins", 1); err != nil {
		t.Fatalf("add stat: %v", err)
	}

	earned, err := tracker.CheckAchievements("user-1")
	if err != nil || len(earned) != 1 {
		t.Fatalf("first check: earned=%v err=%v", earned, err)
	}

	// Inside the cooldown window nothing fires.
	tracker.Now = fixedClock(start.Add(12 * time.Hour))
	earned, err = tracker.CheckAchievements("user-1")
	if err != nil || len(earned) != 0 {
		t.Fatalf("inside cooldown: earned=%v err=%v", earned, err)
	}

	// After the cooldown the still-satisfied requirement re-fires.
	tracker.Now = fixedClock(start.Add(25 * time.Hour))
	earned, err = tracker.CheckAchievements("user-1")
	if err != nil || len(earned) != 1 {
		t.Fatalf("after cooldown: earned=%v err=%v", earned, err)
	}

	prog := mustProgression(t, db, "user-1")
	for _, state := range prog.Achievements {
		if state.TimesCompleted != 2 {
			t.Errorf("times completed = %d, want 2", state.TimesCompleted)
		}
	}
}

func TestLevelRequirementReadsProgressionLevel(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	tracker := NewAchievementService(db, ledger)

	mustCreateAchievement(t, db, models.Achievement{
		Code: "LEVEL_2",
		Name: "Level Two",
		Requirements: []models.Requirement{
			{Metric: "level", Comparator: models.ComparatorGTE, Target: 2},
		},
	})

	if _, err := ledger.AddExperience("user-1", 100, "test"); err != nil {
		t.Fatalf("add experience: %v", err)
	}

	earned, err := tracker.CheckAchievements("user-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(earned) != 1 || earned[0].Code != "LEVEL_2" {
		t.Fatalf("earned = %v, want [LEVEL_2]", earned)
	}
}

func TestCreateAchievementValidation(t *testing.T) {
	db := newTestDB(t)
	tracker := NewAchievementService(db, NewLedgerService(db))

	bad := models.Achievement{Code: "BROKEN", Name: "Broken", MaxProgress: 1}
	if err := tracker.CreateAchievement(&bad); err == nil {
		t.Error("expected error for achievement without requirements")
	}

	alsoBad := models.Achievement{
		Code: "BAD_CMP", Name: "Bad", MaxProgress: 1,
		Requirements: []models.Requirement{{Metric: "x", Comparator: "nope", Target: 1}},
	}
	if err := tracker.CreateAchievement(&alsoBad); err == nil {
		t.Error("expected error for unknown comparator")
	}
}
