package domain

import (
	"sync/atomic"
	"time"
)

type ConnState int32

const (
	StateConnected ConnState = iota
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session binds a phone number to a live automation client.
// The client is owned by the session; whoever removes the session closes it.
type Session struct {
	Phone     string
	Client    AutomationClient
	CreatedAt time.Time

	state atomic.Int32
}

func NewSession(phone string, client AutomationClient, createdAt time.Time) *Session {
	return &Session{Phone: phone, Client: client, CreatedAt: createdAt}
}

func (s *Session) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *Session) SetState(state ConnState) {
	s.state.Store(int32(state))
}
