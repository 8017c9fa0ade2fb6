package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/crypto"
)

const uniqueViolation = "23505"

// CredentialStore implements domain.CredentialStore on the users table.
// Tokens are stored encrypted, so verification loads the row by phone and compares in memory.
type CredentialStore struct {
	pool   *pgxpool.Pool
	crypto crypto.Service
}

func NewCredentialStore(pool *pgxpool.Pool, cryptoSvc crypto.Service) *CredentialStore {
	return &CredentialStore{pool: pool, crypto: cryptoSvc}
}

func (s *CredentialStore) Verify(ctx context.Context, phone, token string) (bool, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(token) == "" {
		return false, nil
	}

	var stored string
	err := s.pool.QueryRow(ctx, `SELECT token FROM users WHERE phone = $1`, phone).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load user token: %w", err)
	}

	plain, err := s.crypto.Decrypt(stored)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt user token: %w", err)
	}

	return crypto.TokensEqual(plain, token), nil
}

func (s *CredentialStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT phone, created_at FROM users ORDER BY created_at, phone`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		var u domain.User
		err := row.Scan(&u.Phone, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (s *CredentialStore) Exists(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (s *CredentialStore) Insert(ctx context.Context, phone, token string) error {
	encrypted, err := s.crypto.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt user token: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO users (phone, token) VALUES ($1, $2)`, phone, encrypted)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, phone string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
