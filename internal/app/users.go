package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/crypto"
)

func (s *Service) authorizeAdmin(adminToken string) error {
	if adminToken == "" || !crypto.TokensEqual(adminToken, s.opts.AdminToken) {
		return domain.ErrAdminUnauthorized
	}
	return nil
}

// ListUsers returns every registered user. Tokens are not populated.
func (s *Service) ListUsers(ctx context.Context, adminToken string) ([]domain.User, error) {
	if err := s.authorizeAdmin(adminToken); err != nil {
		return nil, err
	}

	users, err := s.credentials.List(ctx)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// AddUser registers phone with token. It returns domain.ErrUserExists, and leaves the
// stored token untouched, when phone is already registered.
func (s *Service) AddUser(ctx context.Context, phone, token, adminToken string) error {
	if err := s.authorizeAdmin(adminToken); err != nil {
		return err
	}

	phone, token = strings.TrimSpace(phone), strings.TrimSpace(token)
	if phone == "" || token == "" {
		return domain.ErrMissingCredentials
	}

	exists, err := s.credentials.Exists(ctx, phone)
	if err != nil {
		return storeErr("check user", err)
	}
	if exists {
		return domain.ErrUserExists
	}

	if err := s.credentials.Insert(ctx, phone, token); err != nil {
		return storeErr("insert user", err)
	}

	slog.InfoContext(ctx, "User added", "phone", phone)
	return nil
}

// DeleteUser removes phone from the credential store. Deleting an unknown phone succeeds.
// A live session for phone is left alone; it stops accepting calls once the token is gone.
func (s *Service) DeleteUser(ctx context.Context, phone, adminToken string) error {
	if err := s.authorizeAdmin(adminToken); err != nil {
		return err
	}

	if err := s.credentials.Delete(ctx, strings.TrimSpace(phone)); err != nil {
		return storeErr("delete user", err)
	}

	slog.InfoContext(ctx, "User deleted", "phone", phone)
	return nil
}
