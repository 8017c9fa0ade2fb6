package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGetUsers(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	app := &mockAppService{
		listUsersFn: func(_ context.Context, adminToken string) ([]domain.User, error) {
			assert.Equal(t, "admin-secret", adminToken)
			return []domain.User{{Phone: "5550001", Token: "T", CreatedAt: created}}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/get-users?adminToken=admin-secret", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"phone":"5550001","created_at":"2026-03-01T12:00:00Z"}]`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), `"T"`)
}

func TestGetUsers_EmptyIsArray(t *testing.T) {
	app := &mockAppService{
		listUsersFn: func(context.Context, string) ([]domain.User, error) { return nil, nil },
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodGet, "/get-users?adminToken=x", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdminRoutes_WrongToken(t *testing.T) {
	app := &mockAppService{
		listUsersFn:  func(context.Context, string) ([]domain.User, error) { return nil, domain.ErrAdminUnauthorized },
		addUserFn:    func(context.Context, string, string, string) error { return domain.ErrAdminUnauthorized },
		deleteUserFn: func(context.Context, string, string) error { return domain.ErrAdminUnauthorized },
	}
	srv := newTestServer(t, app)

	for _, r := range []struct{ method, target string }{
		{http.MethodGet, "/get-users?adminToken=nope"},
		{http.MethodPost, "/add-user?phone=1&accessToken=T&adminToken=nope"},
		{http.MethodDelete, "/delete-user?phone=1&adminToken=nope"},
	} {
		rec := serve(srv, r.method, r.target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.target)
		assert.Contains(t, rec.Body.String(), "Wrong admin token")
	}
}

func TestAddUser(t *testing.T) {
	var gotPhone, gotToken string
	app := &mockAppService{
		addUserFn: func(_ context.Context, phone, token, _ string) error {
			gotPhone, gotToken = phone, token
			return nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPost, "/add-user?phone=5550002&accessToken=secret&adminToken=a", "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User added successfully"}`, rec.Body.String())
	assert.Equal(t, "5550002", gotPhone)
	assert.Equal(t, "secret", gotToken)
}

func TestAddUser_AlreadyExists(t *testing.T) {
	app := &mockAppService{
		addUserFn: func(context.Context, string, string, string) error { return domain.ErrUserExists },
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodPost, "/add-user?phone=5550001&accessToken=T&adminToken=a", "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User already exists"}`, rec.Body.String())
}

func TestAddUser_Failures(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{domain.ErrMissingCredentials, http.StatusBadRequest},
		{fmt.Errorf("insert user: %w: %w", domain.ErrStoreFailure, errors.New("down")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		app := &mockAppService{
			addUserFn: func(context.Context, string, string, string) error { return tt.err },
		}
		srv := newTestServer(t, app)

		rec := serve(srv, http.MethodPost, "/add-user?adminToken=a", "")

		assert.Equal(t, tt.wantStatus, rec.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	var gotPhone string
	app := &mockAppService{
		deleteUserFn: func(_ context.Context, phone, _ string) error {
			gotPhone = phone
			return nil
		},
	}
	srv := newTestServer(t, app)

	rec := serve(srv, http.MethodDelete, "/delete-user?phone=5550001&adminToken=a", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User deleted successfully"}`, rec.Body.String())
	assert.Equal(t, "5550001", gotPhone)
}
