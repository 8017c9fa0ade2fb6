package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatlabels/internal/adapter/metrics"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/session"
	"github.com/stretchr/testify/require"
)

const (
	testPhone      = "5550001"
	testToken      = "T"
	testAdminToken = "admin-secret-0123456789"
)

// --- Mock implementations ---

type mockCredentialStore struct {
	verifyFn func(ctx context.Context, phone, token string) (bool, error)
	listFn   func(ctx context.Context) ([]domain.User, error)
	existsFn func(ctx context.Context, phone string) (bool, error)
	insertFn func(ctx context.Context, phone, token string) error
	deleteFn func(ctx context.Context, phone string) error
}

func (m *mockCredentialStore) Verify(ctx context.Context, phone, token string) (bool, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, phone, token)
	}
	return phone == testPhone && token == testToken, nil
}

func (m *mockCredentialStore) List(ctx context.Context) ([]domain.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockCredentialStore) Exists(ctx context.Context, phone string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, phone)
	}
	return false, nil
}

func (m *mockCredentialStore) Insert(ctx context.Context, phone, token string) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, phone, token)
	}
	return nil
}

func (m *mockCredentialStore) Delete(ctx context.Context, phone string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, phone)
	}
	return nil
}

type mockFactory struct {
	calls    atomic.Int32
	createFn func(ctx context.Context, phone string, onCode func(string), onStatus func(domain.ConnState)) (domain.AutomationClient, error)
}

func (m *mockFactory) Create(ctx context.Context, phone string, onCode func(string), onStatus func(domain.ConnState)) (domain.AutomationClient, error) {
	m.calls.Add(1)
	if m.createFn != nil {
		return m.createFn(ctx, phone, onCode, onStatus)
	}
	return newFakeClient(), nil
}

type applyCall struct {
	LabelID string
	ChatIDs []string
	Action  domain.LabelAction
}

type pendingLabel struct {
	label  domain.Label
	hidden int
}

// fakeClient models an account's labels and chats. Created labels stay hidden for
// createDelay calls to Labels; a negative delay hides them forever.
type fakeClient struct {
	mu          sync.Mutex
	labels      []domain.Label
	pending     []pendingLabel
	chats       []domain.Chat
	members     map[string][]string
	createDelay int
	nextID      int

	createCalls int
	labelsCalls int
	applyCalls  []applyCall

	labelsErr error
	applyErr  error
	chatsErr  error
	closed    atomic.Bool
}

func newFakeClient(labels ...string) *fakeClient {
	c := &fakeClient{members: make(map[string][]string)}
	for _, name := range labels {
		c.nextID++
		c.labels = append(c.labels, domain.Label{ID: fmt.Sprint(c.nextID), Name: name})
	}
	return c
}

func (c *fakeClient) Labels(context.Context) ([]domain.Label, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labelsCalls++
	if c.labelsErr != nil {
		return nil, c.labelsErr
	}

	remaining := c.pending[:0]
	for _, p := range c.pending {
		switch {
		case p.hidden == 0:
			c.labels = append(c.labels, p.label)
		case p.hidden > 0:
			p.hidden--
			remaining = append(remaining, p)
		default:
			remaining = append(remaining, p)
		}
	}
	c.pending = remaining
	return slices.Clone(c.labels), nil
}

func (c *fakeClient) CreateLabel(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	c.nextID++
	c.pending = append(c.pending, pendingLabel{
		label:  domain.Label{ID: fmt.Sprint(c.nextID), Name: name},
		hidden: c.createDelay,
	})
	return nil
}

func (c *fakeClient) ChatsByLabel(_ context.Context, labelName string) ([]domain.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chatsErr != nil {
		return nil, c.chatsErr
	}

	var labelID string
	for _, l := range c.labels {
		if l.Name == labelName {
			labelID = l.ID
		}
	}

	var out []domain.Chat
	for _, id := range c.members[labelID] {
		for _, chat := range c.chats {
			if chat.ID == id {
				out = append(out, chat)
			}
		}
	}
	return out, nil
}

func (c *fakeClient) ApplyLabel(_ context.Context, labelID string, chatIDs []string, action domain.LabelAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyCalls = append(c.applyCalls, applyCall{LabelID: labelID, ChatIDs: slices.Clone(chatIDs), Action: action})
	if c.applyErr != nil {
		return c.applyErr
	}

	for _, id := range chatIDs {
		if !slices.ContainsFunc(c.chats, func(ch domain.Chat) bool { return ch.ID == id }) {
			user, _, _ := strings.Cut(id, "@")
			c.chats = append(c.chats, domain.Chat{ID: id, User: user})
		}
		switch action {
		case domain.LabelAdd:
			if !slices.Contains(c.members[labelID], id) {
				c.members[labelID] = append(c.members[labelID], id)
			}
		case domain.LabelRemove:
			c.members[labelID] = slices.DeleteFunc(c.members[labelID], func(m string) bool { return m == id })
		}
	}
	return nil
}

func (c *fakeClient) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

func (c *fakeClient) snapshotApplies() []applyCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.applyCalls)
}

func (c *fakeClient) creates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// --- Helpers ---

type testService struct {
	*Service
	registry *session.Registry
	clock    *clockwork.FakeClock
	factory  *mockFactory
	store    *mockCredentialStore
}

func newTestService(t *testing.T) *testService {
	t.Helper()

	reg := prometheus.NewRegistry()
	registry := session.NewRegistry()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	factory := &mockFactory{}
	store := &mockCredentialStore{}

	svc := NewService(registry, factory, store, clock,
		metrics.NewPairingMetrics(reg), metrics.NewLabelMetrics(reg),
		Options{AdminToken: testAdminToken, LabelPollInterval: 2 * time.Second, LabelPollAttempts: 5})
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	return &testService{Service: svc, registry: registry, clock: clock, factory: factory, store: store}
}

// withSession stores a connected session backed by client.
func (ts *testService) withSession(client *fakeClient) *domain.Session {
	sess := domain.NewSession(testPhone, client, ts.clock.Now())
	ts.registry.Put(sess)
	return sess
}

// collect reads ch until it closes.
func collect(t *testing.T, ch <-chan domain.PairingEvent) []domain.PairingEvent {
	t.Helper()
	var events []domain.PairingEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			require.FailNow(t, "pairing stream did not close", "received %d events", len(events))
		}
	}
}
