// Package engine talks to the automation gateway, the sidecar that drives the chat
// platform's web client. Gateway implements domain.ClientFactory; the clients it returns
// implement domain.AutomationClient and keep a background watcher on the session status.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatlabels/internal/adapter/metrics"
	"github.com/pscheid92/chatlabels/internal/platform/retry"
)

const maxErrorBody = 512

type Config struct {
	BaseURL        string
	APIKey         string
	PollInterval   time.Duration
	StatusInterval time.Duration
	RequestTimeout time.Duration
}

type Gateway struct {
	base           *url.URL
	apiKey         string
	http           *http.Client
	clock          clockwork.Clock
	metrics        *metrics.EngineMetrics
	pollInterval   time.Duration
	statusInterval time.Duration
	readPolicy     retry.Policy
}

func NewGateway(cfg Config, clock clockwork.Clock, m *metrics.EngineMetrics) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("engine URL must be absolute, got %q", cfg.BaseURL)
	}

	g := &Gateway{
		base:           base,
		apiKey:         cfg.APIKey,
		http:           &http.Client{Timeout: cfg.RequestTimeout},
		clock:          clock,
		metrics:        m,
		pollInterval:   cfg.PollInterval,
		statusInterval: cfg.StatusInterval,
	}
	g.readPolicy = retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   250 * time.Millisecond,
		MaxBackoff:       2 * time.Second,
		RateLimitBackoff: 2 * time.Second,
		Clock:            clock,
	}
	return g, nil
}

// StatusError is a non-2xx reply from the gateway.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("engine %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Ping checks that the gateway is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.call(ctx, "healthz", http.MethodGet, "/healthz", nil, nil, nil)
}

// read performs an idempotent GET, retrying transient failures.
func (g *Gateway) read(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	p := g.readPolicy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		g.metrics.Retries.WithLabelValues(endpoint).Inc()
		slog.DebugContext(ctx, "Retrying engine read", "endpoint", endpoint, "attempt", attempt, "backoff", backoff, "error", err)
	}

	err := retry.DoVoid(ctx, p, classify, func() error {
		return g.call(ctx, endpoint, http.MethodGet, path, query, nil, out)
	})

	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case statusErr.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Retry
	}
	return retry.Stop
}

func (g *Gateway) call(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	start := g.clock.Now()
	err := g.do(ctx, endpoint, method, path, query, body, out)
	g.metrics.RequestDuration.WithLabelValues(endpoint).Observe(g.clock.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	g.metrics.Requests.WithLabelValues(endpoint, result).Inc()
	return err
}

func (g *Gateway) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	u := *g.base
	u.RawPath = g.base.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("invalid %s path: %w", endpoint, err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// ErrInvalidSessionName is returned for phones that cannot name a gateway session.
var ErrInvalidSessionName = errors.New("invalid session name")

// sessionPath returns the escaped path of action for the session named phone.
func sessionPath(phone, action string) string {
	return "/api/" + url.PathEscape(phone) + "/" + action
}

// checkSessionName rejects names that would escape their path segment once dot
// segments are resolved.
func checkSessionName(phone string) error {
	switch strings.TrimSpace(phone) {
	case "", ".", "..":
		return fmt.Errorf("%w: %q", ErrInvalidSessionName, phone)
	}
	return nil
}
