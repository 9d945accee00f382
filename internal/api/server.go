// Package api wires the Echo server: health probes, Prometheus metrics, and
// the Huma-registered admin API.
package api

import (
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Golani45/uthgard/internal/api/handlers"
	"github.com/Golani45/uthgard/internal/api/middleware"
	"github.com/Golani45/uthgard/internal/engine"
	"github.com/Golani45/uthgard/internal/kv"
)

// NewServer builds the Echo instance with middleware and all routes.
func NewServer(eng *engine.Engine, store kv.Store, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(store)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("Uthgard Herald Alerter", "1.0.0"))
	handlers.RegisterStateRoutes(api, handlers.NewStateHandler(eng))
	handlers.RegisterTriggerRoutes(api, handlers.NewTriggerHandler(eng, eng))
	handlers.RegisterAdminRoutes(api, handlers.NewAdminHandler(eng))
	handlers.RegisterSimulateRoutes(api, handlers.NewSimulateHandler(eng))

	return e
}
