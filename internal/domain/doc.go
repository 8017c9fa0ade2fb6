// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (errors.go, session.go, pairing.go, label.go, user.go) hold shared types
// and the collaborator contracts the app layer consumes. No implementation code - just contracts.
package domain
