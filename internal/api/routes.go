package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func SetupRoutes(app *fiber.App, handler *Handler, log *zap.Logger) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: time.RFC3339,
	}))

	api := app.Group("/api/v1")

	api.Get("/health", handler.GetHealth)
	api.Get("/metrics", handler.GetMetrics)

	// Dataset lifecycle
	api.Get("/dataset", handler.GetDataset)
	api.Post("/dataset/reload", handler.ReloadDataset)

	// Range queries
	api.Get("/stations", handler.GetStations)
	api.Get("/dashboard", handler.GetDashboard)

	top := api.Group("/top")
	top.Get("/monthly", handler.GetTopMonthly)
	top.Get("/summary", handler.GetTopSummary)
	top.Get("/distributions", handler.GetTopDistributions)
	top.Get("/observations", handler.GetTopObservations)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Endpoint not found",
			"path":    c.Path(),
			"success": false,
		})
	})

	log.Debug("Routes registered", zap.Int("routes", len(app.GetRoutes(true))))
}
