package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/GlueOps/storypoints/restapi"
	"github.com/GlueOps/storypoints/restapi/modules/webhook"
)

// NewFiberApp creates and configures a Fiber app with the webhook routes
func NewFiberApp(svc *webhook.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "storypoints webhook v1.0",
		ReadTimeout: 10 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint; never touches GitHub
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	restapi.SetupRoutes(app, svc)

	return app
}
