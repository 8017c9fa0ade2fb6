package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/logging"
)

const pairingBufferSize = 8

const (
	reasonInvalidToken     = "Invalid access token"
	reasonSessionExists    = "Connection already exists for this phone number"
	reasonPairingInFlight  = "Pairing already in progress for this phone number"
	reasonStoreUnavailable = "Could not verify access token"
	reasonShuttingDown     = "Server is shutting down"
)

// pairingAttempt is the producer side of one pairing stream. The sink is closed exactly
// once, by finish; emits after that are dropped.
type pairingAttempt struct {
	id    string
	phone string
	ctx   context.Context

	mu     sync.Mutex
	sink   chan domain.PairingEvent
	closed bool
}

// emit pushes ev unless the stream is closed or the consumer has gone away.
func (a *pairingAttempt) emit(ev domain.PairingEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.send(ev)
}

func (a *pairingAttempt) send(ev domain.PairingEvent) bool {
	if a.closed || a.ctx.Err() != nil {
		return false
	}
	select {
	case a.sink <- ev:
		return true
	case <-a.ctx.Done():
		return false
	}
}

func (a *pairingAttempt) finish(ev domain.PairingEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.send(ev)
	a.closed = true
	close(a.sink)
}

func (a *pairingAttempt) fail(reason string) {
	a.finish(domain.PairingEvent{Kind: domain.PairingFailed, Phone: a.phone, Reason: reason})
}

// BeginPairing starts the pairing handshake for phone and returns the event stream.
//
// The stream carries zero or more Code events followed by exactly one terminal event,
// then closes. Cancelling ctx stops delivery but not the engine call: a pairing that
// completes after the consumer left is still stored.
func (s *Service) BeginPairing(ctx context.Context, phone, token string) <-chan domain.PairingEvent {
	a := &pairingAttempt{
		id:    uuid.NewString(),
		phone: phone,
		ctx:   ctx,
		sink:  make(chan domain.PairingEvent, pairingBufferSize),
	}

	s.pairingWg.Add(1)
	go func() {
		defer s.pairingWg.Done()
		defer a.finish(domain.PairingEvent{Kind: domain.PairingFailed, Phone: phone, Reason: "pairing aborted"})
		s.runPairing(a, token)
	}()

	return a.sink
}

func (s *Service) runPairing(a *pairingAttempt, token string) {
	ctx := a.ctx
	log := logging.WithPhone(a.phone).With("attempt_id", a.id)

	if err := s.verify(ctx, a.phone, token); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			log.InfoContext(ctx, "Pairing rejected: invalid access token")
			s.pairing.Attempts.WithLabelValues("unauthorized").Inc()
			a.fail(reasonInvalidToken)
			return
		}
		log.ErrorContext(ctx, "Pairing rejected: credential check failed", "error", err)
		s.pairing.Attempts.WithLabelValues("store_error").Inc()
		a.fail(reasonStoreUnavailable)
		return
	}

	if s.shutdownCtx.Err() != nil {
		s.pairing.Attempts.WithLabelValues("failed").Inc()
		a.fail(reasonShuttingDown)
		return
	}

	reservation, evicted, err := s.registry.Reserve(a.phone)
	switch {
	case errors.Is(err, domain.ErrSessionExists):
		log.InfoContext(ctx, "Pairing rejected: live session exists")
		s.pairing.Attempts.WithLabelValues("exists").Inc()
		a.fail(reasonSessionExists)
		return
	case errors.Is(err, domain.ErrPairingInProgress):
		log.InfoContext(ctx, "Pairing rejected: another attempt is in flight")
		s.pairing.Attempts.WithLabelValues("in_progress").Inc()
		a.fail(reasonPairingInFlight)
		return
	case err != nil:
		s.pairing.Attempts.WithLabelValues("error").Inc()
		a.fail(err.Error())
		return
	}

	if evicted != nil {
		log.InfoContext(ctx, "Evicting disconnected session before re-pairing")
		s.pairing.Evictions.Inc()
		s.pairing.LiveSessions.Set(float64(s.registry.LiveCount()))
		s.closeClient(ctx, evicted, "evicted")
	}

	sess := &domain.Session{Phone: a.phone}
	onCode := func(code string) {
		s.pairing.CodesEmitted.Inc()
		log.InfoContext(ctx, "Pairing code received")
		if !a.emit(domain.PairingEvent{Kind: domain.PairingCode, Code: code, Phone: a.phone}) {
			log.DebugContext(ctx, "Pairing code dropped, consumer gone")
		}
	}
	onStatus := func(state domain.ConnState) {
		if sess.State() != state {
			log.InfoContext(ctx, "Session connectivity changed", "state", state.String())
		}
		sess.SetState(state)
		s.pairing.LiveSessions.Set(float64(s.registry.LiveCount()))
	}

	engineCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	unregister := context.AfterFunc(s.shutdownCtx, stop)
	defer unregister()

	started := s.clock.Now()
	client, err := s.factory.Create(engineCtx, a.phone, onCode, onStatus)
	s.pairing.Duration.Observe(s.clock.Since(started).Seconds())

	if err != nil {
		reservation.Abort()
		log.WarnContext(ctx, "Pairing failed", "error", err)
		s.pairing.Attempts.WithLabelValues("failed").Inc()
		a.fail(fmt.Sprintf("Failed to establish connection for %s: %v", a.phone, err))
		return
	}

	if s.shutdownCtx.Err() != nil {
		reservation.Abort()
		s.closeClient(ctx, &domain.Session{Phone: a.phone, Client: client}, "shutdown")
		s.pairing.Attempts.WithLabelValues("failed").Inc()
		a.fail(reasonShuttingDown)
		return
	}

	sess.Client = client
	sess.CreatedAt = s.clock.Now()
	sess.SetState(domain.StateConnected)
	reservation.Commit(sess)
	s.pairing.LiveSessions.Set(float64(s.registry.LiveCount()))
	s.pairing.Attempts.WithLabelValues("connected").Inc()

	if ctx.Err() != nil {
		log.InfoContext(ctx, "Pairing completed after consumer disconnected")
	} else {
		log.InfoContext(ctx, "Pairing completed")
	}
	a.finish(domain.PairingEvent{Kind: domain.PairingConnected, Phone: a.phone})
}
