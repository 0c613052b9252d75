// Package routes wires the HTTP API onto an echo server
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/vicc-go/disease-normalizer/config"
	"github.com/vicc-go/disease-normalizer/pkg/middleware"
	"github.com/vicc-go/disease-normalizer/pkg/routes/admin"
	"github.com/vicc-go/disease-normalizer/pkg/routes/health"
	"github.com/vicc-go/disease-normalizer/pkg/routes/normalize"
	"github.com/vicc-go/disease-normalizer/pkg/routes/record"
	"github.com/vicc-go/disease-normalizer/pkg/routes/search"
)

// Register attaches middleware and all route groups to the server
func Register(e *echo.Echo, cfg config.Config, logger ectologger.Logger, checker *health.Checker) {
	e.HideBanner = true

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	api := e.Group("/api/v1/disease")
	search.Register(api.Group("/search"))
	normalize.Register(api.Group("/normalize"))
	record.Register(api.Group(""))
	admin.Register(api.Group("/admin"))

	checker.RegisterRoutes(e)
}
