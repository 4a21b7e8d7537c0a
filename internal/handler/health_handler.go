package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// ReadinessChecker reports per-dependency status
type ReadinessChecker interface {
	Ready(ctx context.Context) (map[string]string, error)
}

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	checker ReadinessChecker
	service string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker ReadinessChecker, service string) *HealthHandler {
	return &HealthHandler{checker: checker, service: service}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": h.service,
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks, err := h.checker.Ready(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": checks,
	})
}
