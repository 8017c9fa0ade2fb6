package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatlabels/internal/domain"
)

const msgConnected = "Connection established successfully"

type sseEvent struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

func toSSEEvent(ev domain.PairingEvent) sseEvent {
	switch ev.Kind {
	case domain.PairingCode:
		return sseEvent{Code: ev.Code}
	case domain.PairingConnected:
		return sseEvent{Message: msgConnected, Phone: ev.Phone}
	default:
		return sseEvent{Error: ev.Reason, Phone: ev.Phone}
	}
}

// handleConnect streams the pairing handshake as server-sent events. The stream ends
// after the terminal event. A client that disconnects early stops delivery only;
// the pairing itself keeps running.
func (s *Server) handleConnect(c echo.Context) error {
	ctx := c.Request().Context()
	phone := strings.TrimSpace(c.QueryParam("phone"))
	events := s.app.BeginPairing(ctx, phone, c.QueryParam("accessToken"))

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "Pairing stream consumer disconnected", "phone", phone)
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(w, toSSEEvent(ev)); err != nil {
				slog.DebugContext(ctx, "Failed to write pairing event", "phone", phone, "error", err)
				return nil
			}
		}
	}
}

func writeSSE(w *echo.Response, ev sseEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
