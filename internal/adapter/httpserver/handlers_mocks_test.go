package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	beginPairingFn     func(ctx context.Context, phone, token string) <-chan domain.PairingEvent
	addLabelFn         func(ctx context.Context, phone, token, labelName string, contacts []string) error
	removeLabelFn      func(ctx context.Context, phone, token, labelName string, contacts []string) error
	listChatsByLabelFn func(ctx context.Context, phone, token, labelName string) ([]string, error)
	listUsersFn        func(ctx context.Context, adminToken string) ([]domain.User, error)
	addUserFn          func(ctx context.Context, phone, token, adminToken string) error
	deleteUserFn       func(ctx context.Context, phone, adminToken string) error
}

func (m *mockAppService) BeginPairing(ctx context.Context, phone, token string) <-chan domain.PairingEvent {
	if m.beginPairingFn != nil {
		return m.beginPairingFn(ctx, phone, token)
	}
	ch := make(chan domain.PairingEvent, 1)
	ch <- domain.PairingEvent{Kind: domain.PairingFailed, Phone: phone, Reason: "not implemented"}
	close(ch)
	return ch
}

func (m *mockAppService) AddLabel(ctx context.Context, phone, token, labelName string, contacts []string) error {
	if m.addLabelFn != nil {
		return m.addLabelFn(ctx, phone, token, labelName, contacts)
	}
	return nil
}

func (m *mockAppService) RemoveLabel(ctx context.Context, phone, token, labelName string, contacts []string) error {
	if m.removeLabelFn != nil {
		return m.removeLabelFn(ctx, phone, token, labelName, contacts)
	}
	return nil
}

func (m *mockAppService) ListChatsByLabel(ctx context.Context, phone, token, labelName string) ([]string, error) {
	if m.listChatsByLabelFn != nil {
		return m.listChatsByLabelFn(ctx, phone, token, labelName)
	}
	return nil, nil
}

func (m *mockAppService) ListUsers(ctx context.Context, adminToken string) ([]domain.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, adminToken)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) AddUser(ctx context.Context, phone, token, adminToken string) error {
	if m.addUserFn != nil {
		return m.addUserFn(ctx, phone, token, adminToken)
	}
	return nil
}

func (m *mockAppService) DeleteUser(ctx context.Context, phone, adminToken string) error {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, phone, adminToken)
	}
	return nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{Port: "0", AdminRateLimit: 100, AdminRateBurst: 100}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	srv := &Server{
		echo:   echo.New(),
		config: testConfig(),
		app:    app,
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withConfig(cfg *config.Config) func(*Server) {
	return func(s *Server) {
		s.config = cfg
	}
}

// serve sends a request through the full middleware chain.
func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}

func pairingStream(events ...domain.PairingEvent) <-chan domain.PairingEvent {
	ch := make(chan domain.PairingEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

var _ http.Handler = (*Server)(nil)
