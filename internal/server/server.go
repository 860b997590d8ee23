package server

import (
	"context"

	"github.com/flowbaker/triage/internal/controllers"
	"github.com/flowbaker/triage/internal/middlewares"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
)

// BodyLimit fits a full batch of maximum length messages in a spreadsheet.
const BodyLimit = 32 * 1024 * 1024

type HTTPServerDependencies struct {
	TriageController *controllers.TriageController
	HealthController *controllers.HealthController

	// JWTSecret takes precedence over APIKey when both are set.
	JWTSecret string
	APIKey    string
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName:   controllers.ServiceName,
		BodyLimit: BodyLimit,
	})

	router.Use(cors.New())
	router.Use(logger.New())

	router.Get("/health", deps.HealthController.Health)

	classify := router.Group("/classify")

	switch {
	case deps.JWTSecret != "":
		classify.Use(middlewares.JWTMiddleware(deps.JWTSecret))
	case deps.APIKey != "":
		classify.Use(middlewares.APIKeyMiddleware(deps.APIKey))
	default:
		log.Warn().Msg("No API key or JWT secret configured, classification endpoints are unauthenticated")
	}

	classify.Post("/", deps.TriageController.Classify)
	classify.Post("/file", deps.TriageController.ClassifyFile)
	classify.Post("/ticket", deps.TriageController.ClassifyTicket)

	return router
}
