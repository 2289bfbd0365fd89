// Package restapi registers the HTTP routes.
package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GlueOps/storypoints/restapi/modules/webhook"
)

// SetupRoutes configures the webhook receiver and operational endpoints.
func SetupRoutes(app *fiber.App, svc *webhook.Service) {
	app.Post("/v1/", webhook.Receive(svc))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
