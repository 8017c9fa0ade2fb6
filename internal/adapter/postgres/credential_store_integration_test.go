package postgres

import (
	"context"
	"testing"

	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newEncryptedStore(t *testing.T) *CredentialStore {
	t.Helper()
	pool := setupTestDB(t)
	svc, err := crypto.NewAesGcmCryptoService(testEncryptionKey)
	require.NoError(t, err)
	return NewCredentialStore(pool, svc)
}

func TestCredentialStore_InsertAndVerify(t *testing.T) {
	store := newEncryptedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "5550001", "T0k3n"))

	ok, err := store.Verify(ctx, "5550001", "T0k3n")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Verify(ctx, "5550001", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Verify(ctx, "5550002", "T0k3n")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialStore_TokenEncryptedAtRest(t *testing.T) {
	store := newEncryptedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "5550001", "T0k3n"))

	var stored string
	require.NoError(t, testPool.QueryRow(ctx, "SELECT token FROM users WHERE phone = $1", "5550001").Scan(&stored))
	assert.NotEqual(t, "T0k3n", stored)
}

func TestCredentialStore_VerifyRejectsBlankInput(t *testing.T) {
	store := newEncryptedStore(t)
	ctx := context.Background()

	for _, tc := range [][2]string{{"", "T"}, {"  ", "T"}, {"5550001", ""}, {"5550001", " "}} {
		ok, err := store.Verify(ctx, tc[0], tc[1])
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestCredentialStore_InsertDuplicate(t *testing.T) {
	store := newEncryptedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "5550001", "first"))
	err := store.Insert(ctx, "5550001", "second")
	assert.ErrorIs(t, err, domain.ErrUserExists)

	ok, err := store.Verify(ctx, "5550001", "first")
	require.NoError(t, err)
	assert.True(t, ok, "original token must survive a duplicate insert")
}

func TestCredentialStore_ExistsListDelete(t *testing.T) {
	store := newEncryptedStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "5550001")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Insert(ctx, "5550001", "a"))
	require.NoError(t, store.Insert(ctx, "5550002", "b"))

	exists, err = store.Exists(ctx, "5550001")
	require.NoError(t, err)
	assert.True(t, exists)

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	phones := []string{users[0].Phone, users[1].Phone}
	assert.ElementsMatch(t, []string{"5550001", "5550002"}, phones)
	for _, u := range users {
		assert.Empty(t, u.Token)
		assert.False(t, u.CreatedAt.IsZero())
	}

	require.NoError(t, store.Delete(ctx, "5550001"))
	require.NoError(t, store.Delete(ctx, "unknown"))

	users, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "5550002", users[0].Phone)
}

func TestCredentialStore_PlaintextMode(t *testing.T) {
	pool := setupTestDB(t)
	store := NewCredentialStore(pool, crypto.NoopService{})
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "5550001", "plain"))

	var stored string
	require.NoError(t, pool.QueryRow(ctx, "SELECT token FROM users WHERE phone = $1", "5550001").Scan(&stored))
	assert.Equal(t, "plain", stored)

	ok, err := store.Verify(ctx, "5550001", "plain")
	require.NoError(t, err)
	assert.True(t, ok)
}
