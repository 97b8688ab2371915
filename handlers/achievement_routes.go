// handlers/achievement_routes.go
package handlers

import (
	"fmt"

	"player-progression-system/middleware"
	"player-progression-system/models"
	"player-progression-system/services"
	"player-progression-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupAchievementRoutes(app *fiber.App, tracker *services.AchievementService) {
	// Public catalog — no user context needed
	app.Get("/achievements", func(c *fiber.Ctx) error {
		achievements, err := tracker.ListAchievements()
		if err != nil {
			return fail(c, "failed to list achievements", err)
		}
		return c.JSON(fiber.Map{"achievements": achievements})
	})

	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		achievements, states, err := tracker.UserAchievements(userID)
		if err != nil {
			return fail(c, "failed to load user achievements", err)
		}

		var response []fiber.Map
		for _, a := range achievements {
			entry := fiber.Map{
				"id":           a.ID,
				"code":         a.Code,
				"name":         a.Name,
				"description":  a.Description,
				"icon_url":     a.IconURL,
				"max_progress": a.MaxProgress,
				"repeatable":   a.IsRepeatable,
				"progress":     0,
				"completed":    false,
			}
			if st := states[a.ID]; st != nil {
				entry["progress"] = st.Progress
				entry["completed"] = st.Completed
				entry["completed_at"] = st.CompletedAt
				entry["times_completed"] = st.TimesCompleted
			}
			response = append(response, entry)
		}
		return c.JSON(fiber.Map{"achievements": response})
	})

	securedGroup.Post("/user/achievements/check", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		earned, err := tracker.CheckAchievements(userID)
		if err != nil {
			return fail(c, "achievement check failed", err)
		}
		return c.JSON(fiber.Map{"newly_earned": earned})
	})

	// Internal batch ingestion: other services report stat increments here.
	securedGroup.Post("/progress/events", func(c *fiber.Ctx) error {
		var updates []services.ProgressUpdate
		if err := c.BodyParser(&updates); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := tracker.UpdateProgress(updates); err != nil {
			return fail(c, "progress batch failed", err)
		}
		return c.JSON(fiber.Map{
			"message":  "progress recorded",
			"accepted": len(updates),
		})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/achievements", func(c *fiber.Ctx) error {
		var ach models.Achievement
		if err := c.BodyParser(&ach); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := tracker.CreateAchievement(&ach); err != nil {
			return fail(c, "achievement creation failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(ach)
	})

	// Icon upload goes to R2; the returned CDN URL is stored on the row.
	adminGroup.Post("/achievements/:id/icon", func(c *fiber.Ctx) error {
		achievementID := c.Params("id")

		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "icon file required",
				"cause": err.Error(),
			})
		}

		key := fmt.Sprintf("achievement-icons/%s-%s", achievementID, uuid.NewString())
		url, err := utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "icon upload failed",
				"cause": err.Error(),
			})
		}

		if err := tracker.DB.Model(&models.Achievement{}).
			Where("id = ?", achievementID).
			Update("icon_url", url).Error; err != nil {
			return fail(c, "failed to store icon URL", err)
		}
		return c.JSON(fiber.Map{"icon_url": url})
	})
}
