package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/logging"
)

const abandonTimeout = 10 * time.Second

// Gateway session states.
const (
	statusInitializing = "INITIALIZING"
	statusPairing      = "PAIRING"
	statusConnected    = "CONNECTED"
	statusDisconnected = "DISCONNECTED"
	statusFailed       = "FAILED"
)

type startSessionRequest struct {
	Phone    string `json:"phone"`
	LinkCode bool   `json:"linkCode"`
}

type sessionStatus struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var _ domain.ClientFactory = (*Gateway)(nil)

// Create starts a gateway session for phone and polls its status until it connects or fails.
// Every new pairing code is passed to onCode. After a successful pairing the returned client
// reports connectivity changes through onStatus until it is closed.
func (g *Gateway) Create(ctx context.Context, phone string, onCode func(string), onStatus func(domain.ConnState)) (domain.AutomationClient, error) {
	if err := checkSessionName(phone); err != nil {
		return nil, err
	}
	log := logging.WithPhone(phone)

	req := startSessionRequest{Phone: phone, LinkCode: true}
	if err := g.call(ctx, "start-session", http.MethodPost, sessionPath(phone, "start-session"), nil, req, nil); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	log.InfoContext(ctx, "Engine session started, waiting for pairing")

	var lastCode string
	for {
		st, err := g.status(ctx, phone)
		if err != nil {
			if ctx.Err() != nil {
				g.abandon(phone)
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("poll session status: %w", err)
		}

		switch st.Status {
		case statusConnected:
			log.InfoContext(ctx, "Engine session connected")
			return newClient(g, phone, onStatus), nil
		case statusFailed, statusDisconnected:
			return nil, pairingError(st)
		}

		if st.Code != "" && st.Code != lastCode {
			lastCode = st.Code
			onCode(st.Code)
		}

		select {
		case <-ctx.Done():
			g.abandon(phone)
			return nil, ctx.Err()
		case <-g.clock.After(g.pollInterval):
		}
	}
}

func (g *Gateway) status(ctx context.Context, phone string) (sessionStatus, error) {
	var st sessionStatus
	err := g.read(ctx, "status-session", sessionPath(phone, "status-session"), nil, &st)
	return st, err
}

// abandon closes a session whose pairing was cancelled by shutdown.
func (g *Gateway) abandon(phone string) {
	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()
	if err := g.closeSession(ctx, phone); err != nil {
		slog.Warn("Failed to close abandoned engine session", "phone", phone, "error", err)
	}
}

func (g *Gateway) closeSession(ctx context.Context, phone string) error {
	return g.call(ctx, "close-session", http.MethodPost, sessionPath(phone, "close-session"), nil, nil, nil)
}

func pairingError(st sessionStatus) error {
	if st.Message != "" {
		return errors.New(st.Message)
	}
	return fmt.Errorf("session %s", st.Status)
}

func toConnState(status string) (domain.ConnState, bool) {
	switch status {
	case statusConnected:
		return domain.StateConnected, true
	case statusDisconnected, statusFailed:
		return domain.StateDisconnected, true
	default:
		return 0, false
	}
}
