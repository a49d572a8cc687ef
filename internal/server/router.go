package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/Nika0000/publisher-cli/internal/config"
	"github.com/Nika0000/publisher-cli/internal/release"
	"github.com/Nika0000/publisher-cli/internal/server/handlers"
	"github.com/Nika0000/publisher-cli/internal/server/middleware"
)

// New builds the fiber app serving client updaters (manifests,
// check-update) and the token-gated admin operations.
func New(svc *release.Service) *fiber.App {
	appName := config.Current.AppName
	if appName == "" {
		appName = "Publisher API"
	}
	app := fiber.New(fiber.Config{
		ServerHeader: "Publisher",
		AppName:      appName,
	})
	app.Use(logger.New())

	handlers.Init(svc)

	// Serve stored artifacts and published manifest files directly.
	app.Static("/storage", config.Current.StorageDir)

	api := app.Group("/api/v1")
	api.Get("/manifest/:channel", handlers.GetLatestManifest)
	api.Get("/manifest/:channel/:version", handlers.GetVersionManifest)
	api.Post("/check-update", handlers.CheckUpdate)

	admin := app.Group("/admin", middleware.AuthRequired("admin"))
	admin.Post("/versions/:channel/:version/publish", handlers.PublishVersion)
	admin.Post("/versions/:channel/:version/regenerate", handlers.RegenerateManifest)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "time": time.Now()})
	})

	return app
}
