package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/planb-provider/internal/config"
	"github.com/stretchr/testify/require"
)

// TestConfig_Defaults tests the values used when no environment is set.
func TestConfig_Defaults(t *testing.T) {
	for _, v := range []string{"PORT", "TOKEN_LIFETIME", "KEY_ALGORITHM", "REALM_STORE", "REALMS", "ISSUER_URL", "TRUSTED_PROXIES", "RATE_LIMIT_ADDRESS_REQUESTS"} {
		t.Setenv(v, "")
	}
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, 8*time.Hour, c.GetTokenLifetime())
	require.Equal(t, "RS256", c.GetKeyAlgorithm())
	require.Equal(t, config.StoreMemory, c.GetRealmStore())
	require.Equal(t, []string{"/services", "/employees"}, c.GetRealms())
	require.Empty(t, c.GetIssuerURL())
	require.Empty(t, c.GetAllowedOrigins())
	require.Empty(t, c.GetTrustedProxies())
	require.Equal(t, 100, c.GetRateLimitAddressRequests())
}

// TestConfig_Overrides tests that environment variables replace defaults.
func TestConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("TOKEN_LIFETIME", "15m")
	t.Setenv("KEY_ROTATION_INTERVAL", "2h")
	t.Setenv("REALMS", "/test, ,/customers")
	t.Setenv("ISSUER_URL", "https://auth.example.com/")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,*")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")
	t.Setenv("RATE_LIMIT_ADDRESS_REQUESTS", "20")
	c := config.New()

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 15*time.Minute, c.GetTokenLifetime())
	require.Equal(t, 2*time.Hour, c.GetKeyRotationInterval())
	require.Equal(t, []string{"/test", "/customers"}, c.GetRealms())
	require.Equal(t, "https://auth.example.com", c.GetIssuerURL())
	require.False(t, c.GetEnableRateLimiting())
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, c.GetTrustedProxies())
	require.Equal(t, 20, c.GetRateLimitAddressRequests())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("*"))
	require.Equal(t, "*, https://a.example.com", c.GetAllowedOrigins().String())
}

// TestGetEnvDuration tests that invalid values fall back to the default.
func TestGetEnvDuration(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	require.Equal(t, time.Second, config.GetEnvDuration("SOME_DURATION", time.Second))

	t.Setenv("SOME_DURATION", "-5s")
	require.Equal(t, time.Second, config.GetEnvDuration("SOME_DURATION", time.Second))

	t.Setenv("SOME_DURATION", "5s")
	require.Equal(t, 5*time.Second, config.GetEnvDuration("SOME_DURATION", time.Second))
}
