package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/99minutos/identity-system/internal/infrastructure/http/handlers"
)

// NewOpsRouter builds the identity service's operations listener: probes and
// metrics. The service itself is reached through the broker, never over HTTP.
func NewOpsRouter(checks map[string]handlers.Check) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// --- Global middleware ---
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// --- Health probes (no auth required) ---
	RegisterHealth(e, checks)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

// RegisterHealth mounts the liveness and readiness probes on e.
func RegisterHealth(e *echo.Echo, checks map[string]handlers.Check) {
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
}
