// Package httpserver exposes the label API, the admin routes, the /connect pairing
// stream and the operational endpoints over echo.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatlabels/internal/adapter/metrics"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/config"
)

type appService interface {
	BeginPairing(ctx context.Context, phone, token string) <-chan domain.PairingEvent
	AddLabel(ctx context.Context, phone, token, labelName string, contacts []string) error
	RemoveLabel(ctx context.Context, phone, token, labelName string, contacts []string) error
	ListChatsByLabel(ctx context.Context, phone, token, labelName string) ([]string, error)
	ListUsers(ctx context.Context, adminToken string) ([]domain.User, error)
	AddUser(ctx context.Context, phone, token, adminToken string) error
	DeleteUser(ctx context.Context, phone, adminToken string) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app            appService
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

func NewServer(cfg *config.Config, app appService, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		app:            app,
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
