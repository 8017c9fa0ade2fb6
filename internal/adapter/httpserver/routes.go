package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		ReferrerPolicy:     "no-referrer",
	}))

	s.registerHealthRoutes()
	s.registerLabelRoutes()
	s.registerAdminRoutes()
	streams := newStreamLimiter(s.config.ConnectMaxStreams, s.config.ConnectMaxStreamsPerIP)
	s.echo.GET("/connect", s.handleConnect, streams.middleware())

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

func (s *Server) registerLabelRoutes() {
	s.echo.POST("/add-label-to-chats", s.handleAddLabel)
	s.echo.DELETE("/remove-label-from-chats", s.handleRemoveLabel)
	s.echo.GET("/chats-by-label", s.handleChatsByLabel)
}

func (s *Server) registerAdminRoutes() {
	limiter := newRateLimiter(s.config.AdminRateLimit, s.config.AdminRateBurst)

	s.echo.GET("/get-users", s.handleGetUsers, limiter)
	s.echo.POST("/add-user", s.handleAddUser, limiter)
	s.echo.DELETE("/delete-user", s.handleDeleteUser, limiter)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		// query strings carry access and admin tokens
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", c.Request().URL.Path,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
