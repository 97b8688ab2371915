package services

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.UserProgression{},
		&models.Achievement{},
		&models.ChallengeTemplate{},
		&models.Challenge{},
		&models.ChallengeAttempt{},
		&models.CurrencyDefinition{},
		&models.ExchangeRate{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentRound{},
		&models.TournamentMatch{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func mustCreateAchievement(t *testing.T, db *gorm.DB, ach models.Achievement) models.Achievement {
	t.Helper()
	if ach.ID == "" {
		ach.ID = uuid.NewString()
	}
	if ach.MaxProgress == 0 {
		ach.MaxProgress = 1
	}
	ach.IsActive = true
	if err := db.Create(&ach).Error; err != nil {
		t.Fatalf("create achievement %s: %v", ach.Code, err)
	}
	return ach
}

func mustProgression(t *testing.T, db *gorm.DB, externalUserID string) *models.UserProgression {
	t.Helper()
	var prog models.UserProgression
	if err := db.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
		t.Fatalf("load progression for %s: %v", externalUserID, err)
	}
	return &prog
}
