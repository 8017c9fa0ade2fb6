package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pscheid92/chatlabels/internal/domain"
)

const (
	contactSuffix           = "@c.us"
	unnamedGroupPlaceholder = "Unnamed Group"
)

// AddLabel tags contacts with labelName, creating the label first if the account
// does not have one with that exact name.
func (s *Service) AddLabel(ctx context.Context, phone, token, labelName string, contacts []string) error {
	err := s.addLabel(ctx, phone, token, labelName, contacts)
	s.labels.Operations.WithLabelValues("add", outcome(err)).Inc()
	return err
}

func (s *Service) addLabel(ctx context.Context, phone, token, labelName string, contacts []string) error {
	sess, err := s.resolveSession(ctx, phone, token)
	if err != nil {
		return err
	}

	chatIDs := normalizeContacts(contacts)
	if len(chatIDs) == 0 {
		return domain.ErrNoContacts
	}

	labelID, err := s.ensureLabel(ctx, sess, labelName)
	if err != nil {
		return err
	}

	if err := sess.Client.ApplyLabel(ctx, labelID, chatIDs, domain.LabelAdd); err != nil {
		return engineErr("apply label", err)
	}
	s.labels.Contacts.WithLabelValues(string(domain.LabelAdd)).Add(float64(len(chatIDs)))

	slog.InfoContext(ctx, "Label added to chats", "phone", phone, "label", labelName, "contacts", len(chatIDs))
	return nil
}

// RemoveLabel untags contacts. It never creates a label: an unknown name yields
// domain.ErrLabelNotFound without touching the engine's batch call.
func (s *Service) RemoveLabel(ctx context.Context, phone, token, labelName string, contacts []string) error {
	err := s.removeLabel(ctx, phone, token, labelName, contacts)
	s.labels.Operations.WithLabelValues("remove", outcome(err)).Inc()
	return err
}

func (s *Service) removeLabel(ctx context.Context, phone, token, labelName string, contacts []string) error {
	sess, err := s.resolveSession(ctx, phone, token)
	if err != nil {
		return err
	}

	chatIDs := normalizeContacts(contacts)
	if len(chatIDs) == 0 {
		return domain.ErrNoContacts
	}

	labels, err := sess.Client.Labels(ctx)
	if err != nil {
		return engineErr("list labels", err)
	}

	labelID, ok := findLabel(labels, labelName)
	if !ok {
		return domain.ErrLabelNotFound
	}

	if err := sess.Client.ApplyLabel(ctx, labelID, chatIDs, domain.LabelRemove); err != nil {
		return engineErr("apply label", err)
	}
	s.labels.Contacts.WithLabelValues(string(domain.LabelRemove)).Add(float64(len(chatIDs)))

	slog.InfoContext(ctx, "Label removed from chats", "phone", phone, "label", labelName, "contacts", len(chatIDs))
	return nil
}

// ListChatsByLabel returns one entry per chat carrying labelName, in engine order:
// the group subject for groups, the bare contact id otherwise.
func (s *Service) ListChatsByLabel(ctx context.Context, phone, token, labelName string) ([]string, error) {
	out, err := s.listChatsByLabel(ctx, phone, token, labelName)
	s.labels.Operations.WithLabelValues("list", outcome(err)).Inc()
	return out, err
}

func (s *Service) listChatsByLabel(ctx context.Context, phone, token, labelName string) ([]string, error) {
	sess, err := s.resolveSession(ctx, phone, token)
	if err != nil {
		return nil, err
	}

	chats, err := sess.Client.ChatsByLabel(ctx, labelName)
	if err != nil {
		return nil, engineErr("list chats", err)
	}

	out := make([]string, 0, len(chats))
	for _, chat := range chats {
		out = append(out, chatDisplayName(chat))
	}
	return out, nil
}

// resolveSession applies the guards shared by all label operations.
// The token is checked before the registry so unknown callers learn nothing about sessions.
func (s *Service) resolveSession(ctx context.Context, phone, token string) (*domain.Session, error) {
	if err := s.verify(ctx, phone, token); err != nil {
		return nil, err
	}

	sess, ok := s.registry.Get(phone)
	if !ok {
		return nil, domain.ErrNoSession
	}
	return sess, nil
}

// ensureLabel resolves the id of labelName, creating the label and waiting for it to
// become visible when absent. Concurrent calls for the same phone and name share one creation.
func (s *Service) ensureLabel(ctx context.Context, sess *domain.Session, labelName string) (string, error) {
	labels, err := sess.Client.Labels(ctx)
	if err != nil {
		return "", engineErr("list labels", err)
	}
	if id, ok := findLabel(labels, labelName); ok {
		return id, nil
	}

	// The flight outlives any single caller; each caller stops waiting on its own ctx.
	flight := s.labelGroup.DoChan(sess.Phone+"\x00"+labelName, func() (any, error) {
		flightCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		defer stop()
		unregister := context.AfterFunc(s.shutdownCtx, stop)
		defer unregister()
		return s.createLabel(flightCtx, sess, labelName)
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Service) createLabel(ctx context.Context, sess *domain.Session, labelName string) (string, error) {
	// A flight that finished just before this one started may already have created it.
	labels, err := sess.Client.Labels(ctx)
	if err != nil {
		return "", engineErr("list labels", err)
	}
	if id, ok := findLabel(labels, labelName); ok {
		return id, nil
	}

	if err := sess.Client.CreateLabel(ctx, labelName); err != nil {
		return "", engineErr("create label", err)
	}
	slog.InfoContext(ctx, "Label created, waiting for it to appear", "phone", sess.Phone, "label", labelName)

	started := s.clock.Now()
	for attempt := 1; attempt <= s.opts.LabelPollAttempts; attempt++ {
		select {
		case <-s.clock.After(s.opts.LabelPollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		labels, err := sess.Client.Labels(ctx)
		if err != nil {
			return "", engineErr("list labels", err)
		}
		if id, ok := findLabel(labels, labelName); ok {
			s.labels.CreationWait.Observe(s.clock.Since(started).Seconds())
			return id, nil
		}
		slog.DebugContext(ctx, "Label not visible yet", "phone", sess.Phone, "label", labelName, "attempt", attempt)
	}

	slog.WarnContext(ctx, "Label did not appear after creation", "phone", sess.Phone, "label", labelName, "attempts", s.opts.LabelPollAttempts)
	return "", domain.ErrLabelCreationTimeout
}

func findLabel(labels []domain.Label, name string) (string, bool) {
	for _, l := range labels {
		if l.Name == name {
			return l.ID, true
		}
	}
	return "", false
}

// normalizeContacts turns caller-supplied numbers into chat ids. Values that already
// carry an address domain are kept as is.
func normalizeContacts(contacts []string) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "@") {
			c += contactSuffix
		}
		out = append(out, c)
	}
	return out
}

func chatDisplayName(chat domain.Chat) string {
	if chat.IsGroup {
		if chat.GroupSubject == "" {
			return unnamedGroupPlaceholder
		}
		return chat.GroupSubject
	}
	if chat.User != "" {
		return chat.User
	}
	user, _, _ := strings.Cut(chat.ID, "@")
	return user
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNoSession):
		return "no_session"
	case errors.Is(err, domain.ErrLabelNotFound):
		return "label_not_found"
	case errors.Is(err, domain.ErrLabelCreationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrNoContacts):
		return "invalid"
	case errors.Is(err, domain.ErrStoreFailure):
		return "store_error"
	default:
		return "engine_error"
	}
}
