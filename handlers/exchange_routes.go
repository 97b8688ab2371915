// handlers/exchange_routes.go
package handlers

import (
	"player-progression-system/middleware"
	"player-progression-system/models"
	"player-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupExchangeRoutes(app *fiber.App, exchange *services.ExchangeService) {
	app.Get("/exchange/currencies", func(c *fiber.Ctx) error {
		currencies, err := exchange.ListCurrencies()
		if err != nil {
			return fail(c, "failed to list currencies", err)
		}
		return c.JSON(fiber.Map{"currencies": currencies})
	})

	app.Get("/exchange/rates", func(c *fiber.Ctx) error {
		rates, err := exchange.ListRates()
		if err != nil {
			return fail(c, "failed to list rates", err)
		}
		return c.JSON(fiber.Map{"rates": rates})
	})

	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/exchange", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			From   string `json:"from" validate:"required"`
			To     string `json:"to" validate:"required"`
			Amount int64  `json:"amount" validate:"required,min=1"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		ok, err := exchange.Exchange(userID, req.From, req.To, req.Amount)
		if err != nil {
			return fail(c, "exchange failed", err)
		}
		if !ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "exchange rejected",
			})
		}
		return c.JSON(fiber.Map{
			"message": "exchange completed",
			"from":    req.From,
			"to":      req.To,
			"amount":  req.Amount,
		})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/exchange/rates", func(c *fiber.Ctx) error {
		var rate models.ExchangeRate
		if err := c.BodyParser(&rate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := exchange.CreateRate(&rate); err != nil {
			return fail(c, "rate creation failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(rate)
	})

	adminGroup.Post("/exchange/inflation/sweep", func(c *fiber.Ctx) error {
		if err := exchange.SweepInflation(); err != nil {
			return fail(c, "inflation sweep failed", err)
		}
		return c.JSON(fiber.Map{"message": "inflation sweep completed"})
	})
}
