package domain

import (
	"context"
	"time"
)

type User struct {
	Phone     string
	Token     string
	CreatedAt time.Time
}

type CredentialStore interface {
	Verify(ctx context.Context, phone, token string) (bool, error)
	List(ctx context.Context) ([]User, error)
	Exists(ctx context.Context, phone string) (bool, error)
	Insert(ctx context.Context, phone, token string) error
	Delete(ctx context.Context, phone string) error
}
