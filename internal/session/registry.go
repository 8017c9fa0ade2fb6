// Package session holds the in-process registry of live automation sessions keyed by phone number.
//
// Registration goes through Reserve/Commit so that the check for an existing live session and
// the later store of a freshly paired one happen under one per-phone claim. A second pairing
// attempt for the same phone is rejected while a reservation is outstanding.
package session

import (
	"sync"

	"github.com/pscheid92/chatlabels/internal/domain"
)

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	pending  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
		pending:  make(map[string]struct{}),
	}
}

func (r *Registry) Get(phone string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[phone]
	return s, ok
}

// Put stores s, replacing any existing entry for the same phone.
func (r *Registry) Put(s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Phone] = s
}

// Remove deletes the entry for phone and returns it. The caller owns the returned client.
func (r *Registry) Remove(phone string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[phone]
	if ok {
		delete(r.sessions, phone)
	}
	return s, ok
}

// HasLive reports whether phone has a session that is not disconnected.
func (r *Registry) HasLive(phone string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, live := r.liveLocked(phone)
	return live
}

// liveLocked returns the stored session for phone and whether it is live. r.mu must be held.
func (r *Registry) liveLocked(phone string) (*domain.Session, bool) {
	s, ok := r.sessions[phone]
	return s, ok && s.State() != domain.StateDisconnected
}

// Len counts stored sessions, disconnected ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// LiveCount counts stored sessions that are not disconnected.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for phone := range r.sessions {
		if _, live := r.liveLocked(phone); live {
			n++
		}
	}
	return n
}

// Reserve claims phone for a new pairing attempt.
//
// Fails with domain.ErrSessionExists when a live session is stored and with
// domain.ErrPairingInProgress when another reservation is outstanding. A stored
// disconnected session is evicted and returned so the caller can close its client.
func (r *Registry) Reserve(phone string) (*Reservation, *domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.pending[phone]; busy {
		return nil, nil, domain.ErrPairingInProgress
	}

	evicted, live := r.liveLocked(phone)
	if live {
		return nil, nil, domain.ErrSessionExists
	}
	if evicted != nil {
		delete(r.sessions, phone)
	}

	r.pending[phone] = struct{}{}
	return &Reservation{registry: r, phone: phone}, evicted, nil
}

// Drain removes every stored session and returns them. Used on shutdown.
func (r *Registry) Drain() []*domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Session, 0, len(r.sessions))
	for phone, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, phone)
	}
	return out
}

// Reservation is a per-phone claim returned by Registry.Reserve.
// Exactly one of Commit or Abort takes effect; later calls are no-ops.
type Reservation struct {
	registry *Registry
	phone    string
	done     bool
}

func (res *Reservation) Phone() string {
	return res.phone
}

// Commit stores s and releases the claim. Returns false if the reservation was already released.
func (res *Reservation) Commit(s *domain.Session) bool {
	r := res.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.done {
		return false
	}
	res.done = true
	delete(r.pending, res.phone)
	r.sessions[res.phone] = s
	return true
}

func (res *Reservation) Abort() {
	r := res.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.done {
		return
	}
	res.done = true
	delete(r.pending, res.phone)
}
