package handlers

import (
	"errors"

	"player-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps service-layer sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidScore),
		errors.Is(err, services.ErrInvalidResult):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNoEligibleTemplate):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
