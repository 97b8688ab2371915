// handlers/tournament_routes.go
package handlers

import (
	"player-progression-system/middleware"
	"player-progression-system/models"
	"player-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournaments *services.TournamentService) {
	app.Get("/tournaments", func(c *fiber.Ctx) error {
		list, err := tournaments.ListTournaments()
		if err != nil {
			return fail(c, "failed to list tournaments", err)
		}
		return c.JSON(fiber.Map{"tournaments": list})
	})

	app.Get("/tournaments/:id/bracket", func(c *fiber.Ctx) error {
		bracket, err := tournaments.GetBracket(c.Params("id"))
		if err != nil {
			return fail(c, "failed to load bracket", err)
		}
		return c.JSON(bracket)
	})

	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/tournaments/:id/register", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			TeamID string `json:"team_id"`
		}
		var req Req
		_ = c.BodyParser(&req) // body optional for solo registration

		registered, err := tournaments.Register(userID, c.Params("id"), req.TeamID)
		if err != nil {
			return fail(c, "registration failed", err)
		}
		if !registered {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "not eligible or registration closed",
			})
		}
		return c.JSON(fiber.Map{"message": "registered"})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/tournaments", func(c *fiber.Ctx) error {
		var t models.Tournament
		if err := c.BodyParser(&t); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := tournaments.CreateTournament(&t); err != nil {
			return fail(c, "tournament creation failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	adminGroup.Post("/tournaments/:id/open", func(c *fiber.Ctx) error {
		opened, err := tournaments.OpenRegistration(c.Params("id"))
		if err != nil {
			return fail(c, "failed to open registration", err)
		}
		if !opened {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "tournament not in draft",
			})
		}
		return c.JSON(fiber.Map{"message": "registration open"})
	})

	adminGroup.Post("/tournaments/:id/start", func(c *fiber.Ctx) error {
		started, err := tournaments.Start(c.Params("id"))
		if err != nil {
			return fail(c, "tournament start failed", err)
		}
		if !started {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "not enough participants or registration not open",
			})
		}
		return c.JSON(fiber.Map{"message": "tournament started"})
	})

	adminGroup.Post("/matches/:id/result", func(c *fiber.Ctx) error {
		type Req struct {
			WinnerID    string `json:"winner_id" validate:"required"`
			LoserID     string `json:"loser_id" validate:"required"`
			WinnerScore int64  `json:"winner_score"`
			LoserScore  int64  `json:"loser_score"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		recorded, err := tournaments.SubmitMatchResult(
			c.Params("id"), req.WinnerID, req.LoserID, req.WinnerScore, req.LoserScore)
		if err != nil {
			return fail(c, "result submission failed", err)
		}
		if !recorded {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "match already completed or tournament not active",
			})
		}
		return c.JSON(fiber.Map{"message": "result recorded"})
	})
}
