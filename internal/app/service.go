package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatlabels/internal/adapter/metrics"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/session"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLabelPollInterval = 2 * time.Second
	defaultLabelPollAttempts = 5
	clientCloseTimeout       = 10 * time.Second
)

type Options struct {
	AdminToken        string
	LabelPollInterval time.Duration
	LabelPollAttempts int
}

// Service is the application layer. It owns the pairing goroutines and, through the
// registry, every live automation client.
type Service struct {
	registry    *session.Registry
	factory     domain.ClientFactory
	credentials domain.CredentialStore
	clock       clockwork.Clock
	pairing     *metrics.PairingMetrics
	labels      *metrics.LabelMetrics
	opts        Options

	labelGroup singleflight.Group

	shutdownCtx context.Context
	shutdown    context.CancelFunc
	pairingWg   sync.WaitGroup
	closeOnce   sync.Once
}

func NewService(
	registry *session.Registry,
	factory domain.ClientFactory,
	credentials domain.CredentialStore,
	clock clockwork.Clock,
	pairing *metrics.PairingMetrics,
	labels *metrics.LabelMetrics,
	opts Options,
) *Service {
	if opts.LabelPollInterval <= 0 {
		opts.LabelPollInterval = defaultLabelPollInterval
	}
	if opts.LabelPollAttempts <= 0 {
		opts.LabelPollAttempts = defaultLabelPollAttempts
	}

	shutdownCtx, shutdown := context.WithCancel(context.Background())
	return &Service{
		registry:    registry,
		factory:     factory,
		credentials: credentials,
		clock:       clock,
		pairing:     pairing,
		labels:      labels,
		opts:        opts,
		shutdownCtx: shutdownCtx,
		shutdown:    shutdown,
	}
}

// StopPairing cancels in-flight pairing attempts so their streams reach a terminal
// event, and makes new attempts fail straight away. Stored sessions are untouched.
func (s *Service) StopPairing() {
	s.shutdown()
}

// Close cancels in-flight pairing attempts, waits for them to unwind and closes every
// stored client. Safe to call more than once.
func (s *Service) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.StopPairing()

		done := make(chan struct{})
		go func() {
			s.pairingWg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			slog.Warn("Pairing attempts still running at shutdown", "error", err)
		}

		for _, sess := range s.registry.Drain() {
			s.closeClient(ctx, sess, "shutdown")
		}
		s.pairing.LiveSessions.Set(0)
	})
	return err
}

func (s *Service) closeClient(ctx context.Context, sess *domain.Session, reason string) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clientCloseTimeout)
	defer cancel()

	if err := sess.Client.Close(closeCtx); err != nil {
		slog.WarnContext(ctx, "Failed to close automation client", "phone", sess.Phone, "reason", reason, "error", err)
		return
	}
	slog.InfoContext(ctx, "Closed automation client", "phone", sess.Phone, "reason", reason)
}

func (s *Service) verify(ctx context.Context, phone, token string) error {
	ok, err := s.credentials.Verify(ctx, phone, token)
	if err != nil {
		return storeErr("verify access token", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}
