package api

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("ok")
	})
	v1 := app.Group("/api/v1")
	v1.Get("/snapshots/:universe", h.GetSnapshot)
	v1.Get("/snapshots/:universe/summary", h.GetSummary)
	v1.Get("/runs", h.ListRuns)
}
