package controllers

import (
	"context"
	"time"

	"github.com/flowbaker/triage/internal/version"

	"github.com/gofiber/fiber/v3"
)

const ServiceName = "ticket-triage"

type HealthReporter interface {
	Health(ctx context.Context) map[string]error
}

type HealthController struct {
	reporter HealthReporter
}

type HealthControllerDependencies struct {
	Reporter HealthReporter
}

func NewHealthController(deps HealthControllerDependencies) *HealthController {
	return &HealthController{reporter: deps.Reporter}
}

// Health answers 503 when any backing service fails its heartbeat.
func (c *HealthController) Health(ctx fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	services := fiber.Map{}

	if c.reporter != nil {
		for name, err := range c.reporter.Health(ctx.RequestCtx()) {
			if err != nil {
				services[name] = err.Error()
				status = "unhealthy"
				code = fiber.StatusServiceUnavailable
				continue
			}

			services[name] = "connected"
		}
	}

	return ctx.Status(code).JSON(fiber.Map{
		"status":    status,
		"service":   ServiceName,
		"services":  services,
		"version":   version.GetVersion(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
