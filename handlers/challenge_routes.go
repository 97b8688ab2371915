// handlers/challenge_routes.go
package handlers

import (
	"player-progression-system/middleware"
	"player-progression-system/models"
	"player-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challenges *services.ChallengeService) {
	app.Get("/challenges/active", func(c *fiber.Ctx) error {
		active, err := challenges.ActiveChallenges()
		if err != nil {
			return fail(c, "failed to list active challenges", err)
		}
		return c.JSON(fiber.Map{"challenges": active})
	})

	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/challenges/generate", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			Difficulty        string `json:"difficulty" validate:"required"`
			TimeAvailableMins int    `json:"time_available_mins" validate:"required,min=1"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		prog, err := challenges.Ledger.EnsureProgression(userID)
		if err != nil {
			return fail(c, "failed to load progression", err)
		}

		challenge, err := challenges.Generate(services.GenerationContext{
			ExternalUserID:       userID,
			UserLevel:            prog.Level,
			DifficultyPreference: req.Difficulty,
			TimeAvailableMins:    req.TimeAvailableMins,
		})
		if err != nil {
			return fail(c, "challenge generation failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	securedGroup.Post("/challenges/:id/join", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		joined, err := challenges.Join(userID, c.Params("id"))
		if err != nil {
			return fail(c, "challenge join failed", err)
		}
		if !joined {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "challenge not joinable",
			})
		}
		return c.JSON(fiber.Map{"message": "joined challenge"})
	})

	securedGroup.Post("/challenges/:id/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			Score int64 `json:"score"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := challenges.Complete(userID, c.Params("id"), req.Score)
		if err != nil {
			return fail(c, "challenge completion failed", err)
		}
		if !result.Accepted {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
		}
		return c.JSON(result)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/challenge-templates", func(c *fiber.Ctx) error {
		var tpl models.ChallengeTemplate
		if err := c.BodyParser(&tpl); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := challenges.CreateTemplate(&tpl); err != nil {
			return fail(c, "template creation failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(tpl)
	})
}
