package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/identity-system/internal/api/handler"
	"github.com/99minutos/identity-system/internal/api/middleware"
	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
	"github.com/99minutos/identity-system/internal/core/token"
	httpinfra "github.com/99minutos/identity-system/internal/infrastructure/http"
	"github.com/99minutos/identity-system/internal/infrastructure/http/handlers"

	_ "github.com/99minutos/identity-system/docs"
)

// Deps are the collaborators of the gateway router.
type Deps struct {
	Identity ports.IdentityService
	Codec    *token.Codec
	Cookie   handler.RefreshCookie
	Checks   map[string]handlers.Check
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// HTTP metrics live in a per-router registry; /metrics also serves the
	// process-wide collectors (rpc client, Go runtime).
	reg := prometheus.NewRegistry()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "gateway",
		Registerer: reg,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.Identity, deps.Cookie)
	userHandler := handler.NewUserHandler(deps.Identity)
	authMiddleware := middleware.Auth(deps.Codec)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh)

	// --- User routes (access token required) ---
	user := e.Group("/user", authMiddleware)
	user.GET("/profile", userHandler.Profile)
	user.GET("/all", userHandler.All, middleware.RBAC(domain.RoleAdmin))
	user.POST("/update", userHandler.Update)
	user.DELETE("/delete", userHandler.Delete)

	// --- Health probes, metrics and docs (no auth required) ---
	httpinfra.RegisterHealth(e, deps.Checks)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, reg},
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
