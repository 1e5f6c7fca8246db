package sqlstore_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/planb-provider/clients"
	apperrors "github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/internal/secrets"
	"github.com/jrsteele09/planb-provider/realms"
	"github.com/jrsteele09/planb-provider/realms/sqlstore"
	"github.com/jrsteele09/planb-provider/users"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.ApplyMigrations())
	return store
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	u := &users.User{Username: "klaus", Scopes: []string{"uid", "name"}}
	require.NoError(t, u.SetPassword("test"))
	require.NoError(t, store.Users().Upsert(ctx, "/test", u))

	got, err := store.Users().Get(ctx, "/test", "klaus")
	require.NoError(t, err)
	require.Equal(t, []string{"uid", "name"}, got.Scopes)
	require.True(t, got.CheckPassword("test"))
	require.False(t, got.Disabled)

	t.Run("upsert updates in place", func(t *testing.T) {
		u.Scopes = []string{"uid"}
		u.Disabled = true
		require.NoError(t, store.Users().Upsert(ctx, "/test", u))

		list, err := store.Users().List(ctx, "/test")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, []string{"uid"}, list[0].Scopes)
		require.True(t, list[0].Disabled)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Users().Get(ctx, "/services", "klaus")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
		require.ErrorIs(t, store.Users().Delete(ctx, "/services", "klaus"), apperrors.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Users().Delete(ctx, "/test", "klaus"))
		_, err := store.Users().Get(ctx, "/test", "klaus")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestStore_Clients(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	hash, err := secrets.HashArgon2id("s3cret")
	require.NoError(t, err)
	require.NoError(t, store.Clients().Upsert(ctx, "/services", &clients.Client{ID: "stups_kio", SecretHash: hash, Scopes: []string{"uid"}}))

	got, err := store.Clients().Get(ctx, "/services", "stups_kio")
	require.NoError(t, err)
	require.True(t, got.CheckSecret("s3cret"))

	list, err := store.Clients().List(ctx, "/services")
	require.NoError(t, err)
	require.Len(t, list, 1)

	realmIDs, err := store.Realms(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"/services"}, realmIDs)
}

// TestStore_AsCredentialStore tests the sqlite repos behind a realms.RepoStore.
func TestStore_AsCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	u := &users.User{Username: "klaus", Scopes: []string{"uid", "name"}}
	require.NoError(t, u.SetPassword("test"))
	require.NoError(t, store.Users().Upsert(ctx, "/test", u))

	creds := realms.NewRepoStore(store.Users(), store.Clients())

	scopes, err := creds.ValidateUser(ctx, "/test", "klaus", "test")
	require.NoError(t, err)
	require.Equal(t, []string{"uid", "name"}, scopes)

	_, err = creds.ValidateUser(ctx, "/test", "klaus", "nope")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = creds.ValidateClient(ctx, "/test", "ghost", "nope")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	require.NoError(t, store.Close())
	_, err = creds.ValidateUser(ctx, "/test", "klaus", "test")
	require.ErrorIs(t, err, apperrors.ErrCredentialStoreUnavailable)
}

func TestStore_Ping(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.Close())
	require.Error(t, store.Ping(context.Background()))
}
