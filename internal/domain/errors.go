package domain

import "errors"

var (
	ErrUnauthorized         = errors.New("invalid access token")
	ErrNoSession            = errors.New("no session for phone")
	ErrLabelNotFound        = errors.New("label does not exist")
	ErrLabelCreationTimeout = errors.New("label not visible after creation")
	ErrFactoryFailure       = errors.New("automation engine failure")
	ErrStoreFailure         = errors.New("credential store failure")
	ErrSessionExists        = errors.New("connection already exists for this phone number")
	ErrPairingInProgress    = errors.New("pairing already in progress for this phone number")
	ErrAdminUnauthorized    = errors.New("wrong admin token")
	ErrNoContacts           = errors.New("at least one contact is required")
	ErrMissingCredentials   = errors.New("phone and access token are required")
	ErrUserExists           = errors.New("user already exists")
)
