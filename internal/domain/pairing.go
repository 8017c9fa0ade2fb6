package domain

type PairingEventKind int

const (
	PairingCode PairingEventKind = iota
	PairingConnected
	PairingFailed
)

// PairingEvent is one notification on a pairing stream. Exactly one terminal
// event (Connected or Failed) ends every stream.
type PairingEvent struct {
	Kind   PairingEventKind
	Code   string
	Phone  string
	Reason string
}

func (e PairingEvent) Terminal() bool {
	return e.Kind != PairingCode
}
