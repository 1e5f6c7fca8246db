package jwt_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/internal/utils"
	"github.com/jrsteele09/planb-provider/token/jwt"
	"github.com/jrsteele09/planb-provider/token/keyring"
	"github.com/stretchr/testify/require"
)

// TestVerify_AcrossRotation tests that tokens stay verifiable while their key is retiring
// and stop verifying once it is purged.
func TestVerify_AcrossRotation(t *testing.T) {
	issuer, verifier, ring, clock := setupTestFixtureWithClock(t)

	before, err := issuer.Issue(klaus())
	require.NoError(t, err)
	oldKey, err := ring.SigningKey()
	require.NoError(t, err)

	newKey, err := ring.Rotate()
	require.NoError(t, err)
	require.NotEqual(t, oldKey.KeyID, newKey.KeyID)

	after, err := issuer.Issue(klaus())
	require.NoError(t, err)
	afterClaims, err := verifier.Verify(utils.Value(after.AccessToken))
	require.NoError(t, err)
	require.Equal(t, "klaus", afterClaims.Subject)

	_, err = verifier.Verify(utils.Value(before.AccessToken))
	require.NoError(t, err, "token from the retiring key must still verify")

	vk, ok := ring.VerificationKey(oldKey.KeyID)
	require.True(t, ok)
	require.Equal(t, keyring.StateRetiring, vk.State)

	// Only the key ring's clock moves, so the failure below comes from the missing key.
	clock.now = clock.now.Add(time.Hour)
	require.Equal(t, 1, ring.Purge())

	_, err = verifier.Verify(utils.Value(before.AccessToken))
	require.ErrorIs(t, err, errors.ErrInvalidToken)
	_, err = verifier.Verify(utils.Value(after.AccessToken))
	require.NoError(t, err)
}

func TestVerify_Rejects(t *testing.T) {
	issuer, verifier, ring := setupTestFixture(t)
	resp, err := issuer.Issue(klaus())
	require.NoError(t, err)
	token := utils.Value(resp.AccessToken)

	t.Run("empty", func(t *testing.T) {
		_, err := verifier.Verify("  ")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		tampered := token[:len(token)-4] + "AAAA"
		_, err := verifier.Verify(tampered)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := jwt.NewVerifier(ring, "https://other.example.com").Verify(token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("no issuer check", func(t *testing.T) {
		_, err := jwt.NewVerifier(ring, "").Verify(token)
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		jwt.NowTimeFunc = func() time.Time { return fixedNow.Add(2 * time.Hour) }
		_, err := verifier.Verify(token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}
