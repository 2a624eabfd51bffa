package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	shared HealthChecker
	local  HealthChecker
}

// NewHealthHandler reports on the shared and process-local stores. Either
// may be nil.
func NewHealthHandler(shared, local HealthChecker) *HealthHandler {
	return &HealthHandler{shared: shared, local: local}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready is degraded, not failing, when only the shared store is down: the
// local store keeps the foreground process working.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"shared_store": check(ctx, h.shared),
		"local_store":  check(ctx, h.local),
	}

	status := "ready"
	statusCode := fiber.StatusOK
	switch {
	case checks["shared_store"] != "healthy" && checks["local_store"] != "healthy":
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	case checks["shared_store"] != "healthy":
		status = "degraded"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func check(ctx context.Context, hc HealthChecker) string {
	if hc == nil {
		return "not configured"
	}
	if err := hc.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
