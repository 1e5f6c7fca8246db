package oauth2_test

import (
	"testing"

	"github.com/jrsteele09/planb-provider/oauth2"
	"github.com/stretchr/testify/require"
)

func TestGrantType_IsSupported(t *testing.T) {
	require.True(t, oauth2.PasswordGrant.IsSupported())
	require.True(t, oauth2.ClientCredentialsGrant.IsSupported())
	require.False(t, oauth2.GrantType("authorization_code").IsSupported())
	require.False(t, oauth2.GrantType("").IsSupported())
}
