// handlers/progression_routes.go
package handlers

import (
	"player-progression-system/middleware"
	"player-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, ledger *services.LedgerService) {
	// 🔐 Secured routes — require user context (userID, roles) from the gateway
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/progression", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := ledger.EnsureProgression(userID)
		if err != nil {
			return fail(c, "failed to load progression", err)
		}

		return c.JSON(fiber.Map{
			"id":                 prog.ID,
			"level":              prog.Level,
			"experience":         prog.Experience,
			"experience_to_next": prog.ExperienceToNext,
			"total_experience":   prog.TotalExperience,
			"balances":           prog.Balances,
			"stats":              prog.Stats,
			"last_level_up_at":   prog.LastLevelUpAt,
		})
	})

	securedGroup.Get("/user/balances", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := ledger.EnsureProgression(userID)
		if err != nil {
			return fail(c, "failed to load balances", err)
		}
		return c.JSON(fiber.Map{"balances": prog.Balances})
	})

	securedGroup.Post("/user/currency/spend", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			Symbol string `json:"symbol" validate:"required"`
			Amount int64  `json:"amount" validate:"required,min=1"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		ok, err := ledger.SpendCurrency(userID, req.Symbol, req.Amount)
		if err != nil {
			return fail(c, "spend failed", err)
		}
		if !ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "insufficient balance",
			})
		}
		return c.JSON(fiber.Map{
			"message": "spent successfully",
			"symbol":  req.Symbol,
			"amount":  req.Amount,
		})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required"`
			XP     int64  `json:"xp" validate:"required,min=1"`
			Reason string `json:"reason" validate:"max=255"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		progress, err := ledger.AddExperience(req.UserID, req.XP, req.Reason)
		if err != nil {
			return fail(c, "XP grant failed", err)
		}

		return c.JSON(fiber.Map{
			"message":  "XP granted successfully",
			"user_id":  req.UserID,
			"xp":       req.XP,
			"progress": progress,
		})
	})

	adminGroup.Post("/currency/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required"`
			Symbol string `json:"symbol" validate:"required"`
			Amount int64  `json:"amount" validate:"required,min=1"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		if err := ledger.AddCurrency(req.UserID, req.Symbol, req.Amount); err != nil {
			return fail(c, "currency grant failed", err)
		}
		return c.JSON(fiber.Map{
			"message": "currency granted successfully",
			"user_id": req.UserID,
			"symbol":  req.Symbol,
			"amount":  req.Amount,
		})
	})
}
