package users_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/users"
	fakeuserrepo "github.com/jrsteele09/planb-provider/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestUser_Password(t *testing.T) {
	u := &users.User{Username: "klaus"}
	require.Error(t, u.Validate(), "no hash yet")

	require.NoError(t, u.SetPassword("test"))
	require.NoError(t, u.Validate())
	require.True(t, u.CheckPassword("test"))
	require.False(t, u.CheckPassword("wrong"))

	t.Run("malformed argon2id hash", func(t *testing.T) {
		broken := &users.User{Username: "klaus", PasswordHash: "$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5"}
		require.Error(t, broken.Validate())
		require.NotPanics(t, func() {
			require.False(t, broken.CheckPassword("pw"))
		})
	})
}

// TestFakeUserRepo tests realm isolation and copy semantics of the in-memory repo.
func TestFakeUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	klaus := &users.User{Username: "klaus", Scopes: []string{"uid", "name"}}
	require.NoError(t, klaus.SetPassword("test"))
	require.NoError(t, repo.Upsert(ctx, "/test", klaus))

	t.Run("get in same realm", func(t *testing.T) {
		got, err := repo.Get(ctx, "/test", "klaus")
		require.NoError(t, err)
		require.Equal(t, []string{"uid", "name"}, got.Scopes)

		got.Scopes[0] = "admin"
		again, err := repo.Get(ctx, "/test", "klaus")
		require.NoError(t, err)
		require.Equal(t, "uid", again.Scopes[0])
	})

	t.Run("other realm does not see user", func(t *testing.T) {
		_, err := repo.Get(ctx, "/services", "klaus")
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("list and realms", func(t *testing.T) {
		list, err := repo.List(ctx, "/test")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, []string{"/test"}, repo.Realms())
	})

	t.Run("reject plaintext password hash", func(t *testing.T) {
		err := repo.Upsert(ctx, "/test", &users.User{Username: "eve", PasswordHash: "plain"})
		require.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "/test", "klaus"))
		require.ErrorIs(t, repo.Delete(ctx, "/test", "klaus"), errors.ErrNotFound)
	})
}
