package engine

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/pscheid92/chatlabels/internal/domain"
)

type labelDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chatDTO struct {
	ID struct {
		User       string `json:"user"`
		Server     string `json:"server"`
		Serialized string `json:"_serialized"`
	} `json:"id"`
	IsGroup       bool `json:"isGroup"`
	GroupMetadata *struct {
		Subject string `json:"subject"`
	} `json:"groupMetadata"`
}

type applyLabelOption struct {
	LabelID string `json:"labelId"`
	Type    string `json:"type"`
}

type applyLabelsRequest struct {
	ChatIDs []string           `json:"chatIds"`
	Options []applyLabelOption `json:"options"`
}

type createLabelRequest struct {
	Name string `json:"name"`
}

// Client is a paired gateway session.
type Client struct {
	gw       *Gateway
	phone    string
	onStatus func(domain.ConnState)

	stopWatch context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
}

var _ domain.AutomationClient = (*Client)(nil)

func newClient(gw *Gateway, phone string, onStatus func(domain.ConnState)) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		gw:        gw,
		phone:     phone,
		onStatus:  onStatus,
		stopWatch: cancel,
		watchDone: make(chan struct{}),
	}
	go c.watch(ctx)
	return c
}

func (c *Client) Labels(ctx context.Context) ([]domain.Label, error) {
	var dtos []labelDTO
	if err := c.gw.read(ctx, "labels", sessionPath(c.phone, "labels"), nil, &dtos); err != nil {
		return nil, err
	}

	labels := make([]domain.Label, 0, len(dtos))
	for _, d := range dtos {
		labels = append(labels, domain.Label{ID: d.ID, Name: d.Name})
	}
	return labels, nil
}

func (c *Client) CreateLabel(ctx context.Context, name string) error {
	return c.gw.call(ctx, "create-label", http.MethodPost, sessionPath(c.phone, "labels"), nil, createLabelRequest{Name: name}, nil)
}

func (c *Client) ChatsByLabel(ctx context.Context, labelName string) ([]domain.Chat, error) {
	var dtos []chatDTO
	query := url.Values{"label": {labelName}}
	if err := c.gw.read(ctx, "chats", sessionPath(c.phone, "chats"), query, &dtos); err != nil {
		return nil, err
	}

	chats := make([]domain.Chat, 0, len(dtos))
	for _, d := range dtos {
		chat := domain.Chat{ID: d.ID.Serialized, User: d.ID.User, IsGroup: d.IsGroup}
		if d.GroupMetadata != nil {
			chat.GroupSubject = d.GroupMetadata.Subject
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

func (c *Client) ApplyLabel(ctx context.Context, labelID string, chatIDs []string, action domain.LabelAction) error {
	req := applyLabelsRequest{
		ChatIDs: chatIDs,
		Options: []applyLabelOption{{LabelID: labelID, Type: string(action)}},
	}
	return c.gw.call(ctx, "apply-labels", http.MethodPost, sessionPath(c.phone, "labels/apply"), nil, req, nil)
}

// Close stops the status watcher and closes the gateway session.
// Only the first call reaches the gateway.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.stopWatch()
		select {
		case <-c.watchDone:
		case <-ctx.Done():
		}
		err = c.gw.closeSession(ctx, c.phone)
	})
	return err
}

// watch polls the session status and reports connectivity changes until stopped.
func (c *Client) watch(ctx context.Context) {
	defer close(c.watchDone)

	last := domain.StateConnected
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.gw.clock.After(c.gw.statusInterval):
		}

		st, err := c.gw.status(ctx, c.phone)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("Session status check failed", "phone", c.phone, "error", err)
			}
			continue
		}

		state, known := toConnState(st.Status)
		if !known || state == last {
			continue
		}
		last = state
		c.gw.metrics.StatusChanges.WithLabelValues(state.String()).Inc()
		slog.Info("Engine session connectivity changed", "phone", c.phone, "state", state.String(), "status", st.Status)
		if c.onStatus != nil {
			c.onStatus(state)
		}
	}
}
