package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"player-progression-system/handlers"
	"player-progression-system/middleware"
	"player-progression-system/models"
	"player-progression-system/services"
	"player-progression-system/utils"
	"player-progression-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, icons are the largest upload
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
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
		log.Fatal("failed to migrate database:", err)
	}

	if err := seedDefaults(db); err != nil {
		log.Fatal("failed to seed defaults:", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ledgerService := services.NewLedgerService(db)
	achievementService := services.NewAchievementService(db, ledgerService)
	challengeService := services.NewChallengeService(db, ledgerService, achievementService, rng)
	exchangeService := services.NewExchangeService(db)
	tournamentService := services.NewTournamentService(db, ledgerService, achievementService, rng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconcileWorker := workers.NewMatchRewardReconcileWorker(db, ledgerService)
	reconcileWorker.Start(ctx)

	exchangeService.StartInflationScheduler()
	challengeService.StartExpiryScheduler()

	// ✅ Setup routes — now with enforced Gateway auth + consistent /s/ prefix
	handlers.SetupProgressionRoutes(app, ledgerService)
	handlers.SetupAchievementRoutes(app, achievementService)
	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupExchangeRoutes(app, exchangeService)
	handlers.SetupTournamentRoutes(app, tournamentService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Match reward reconcile worker running")
	log.Println("✅ Inflation and challenge expiry schedulers running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

// seedDefaults loads the built-in catalogs on an empty database. Each catalog
// seeds only when its table is empty, so redeploys never duplicate rows.
func seedDefaults(db *gorm.DB) error {
	var count int64

	if err := db.Model(&models.Achievement{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		seed := make([]models.Achievement, len(models.DefaultAchievements))
		copy(seed, models.DefaultAchievements)
		for i := range seed {
			seed[i].ID = uuid.NewString()
		}
		if err := db.Create(&seed).Error; err != nil {
			return err
		}
		log.Printf("✅ Seeded %d default achievements", len(seed))
	}

	if err := db.Model(&models.ChallengeTemplate{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		seed := make([]models.ChallengeTemplate, len(models.DefaultChallengeTemplates))
		copy(seed, models.DefaultChallengeTemplates)
		for i := range seed {
			seed[i].ID = uuid.NewString()
		}
		if err := db.Create(&seed).Error; err != nil {
			return err
		}
		log.Printf("✅ Seeded %d default challenge templates", len(seed))
	}

	if err := db.Model(&models.CurrencyDefinition{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		seed := make([]models.CurrencyDefinition, len(models.DefaultCurrencies))
		copy(seed, models.DefaultCurrencies)
		for i := range seed {
			seed[i].ID = uuid.NewString()
		}
		if err := db.Create(&seed).Error; err != nil {
			return err
		}
		log.Printf("✅ Seeded %d default currencies", len(seed))
	}

	if err := db.Model(&models.ExchangeRate{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		seed := make([]models.ExchangeRate, len(models.DefaultExchangeRates))
		copy(seed, models.DefaultExchangeRates)
		for i := range seed {
			seed[i].ID = uuid.NewString()
		}
		if err := db.Create(&seed).Error; err != nil {
			return err
		}
		log.Printf("✅ Seeded %d default exchange rates", len(seed))
	}

	return nil
}
