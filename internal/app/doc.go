// Package app provides the application service layer.
//
// Orchestrates use cases: the pairing handshake, label mutations against a paired account,
// and admin user management. Sits between HTTP handlers and the session registry, the
// automation client factory and the credential store. Depends on domain interfaces, not
// concrete implementations.
package app
