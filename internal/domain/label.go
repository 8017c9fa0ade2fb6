package domain

import "context"

type Label struct {
	ID   string
	Name string
}

// Chat is a chat as listed by the engine. User is the bare contact identifier
// without the address suffix.
type Chat struct {
	ID           string
	User         string
	IsGroup      bool
	GroupSubject string
}

type LabelAction string

const (
	LabelAdd    LabelAction = "add"
	LabelRemove LabelAction = "remove"
)

// AutomationClient is an established automation session for one account.
type AutomationClient interface {
	Labels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) error
	ChatsByLabel(ctx context.Context, labelName string) ([]Chat, error)
	ApplyLabel(ctx context.Context, labelID string, chatIDs []string, action LabelAction) error
	Close(ctx context.Context) error
}

// ClientFactory establishes automation sessions. Create blocks until pairing
// resolves; onCode fires for every pairing code and onStatus for connectivity
// changes after a successful pairing.
type ClientFactory interface {
	Create(ctx context.Context, phone string, onCode func(code string), onStatus func(ConnState)) (AutomationClient, error)
}
