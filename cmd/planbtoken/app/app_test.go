package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/planb-provider/clients"
	fakeclientrepo "github.com/jrsteele09/planb-provider/clients/fakerepo"
	"github.com/jrsteele09/planb-provider/cmd/planbtoken/app"
	"github.com/jrsteele09/planb-provider/internal/config"
	"github.com/jrsteele09/planb-provider/realms"
	"github.com/jrsteele09/planb-provider/realms/seed"
	"github.com/jrsteele09/planb-provider/server"
	"github.com/jrsteele09/planb-provider/token/keyring"
	fakeuserrepo "github.com/jrsteele09/planb-provider/users/repofake"
	"github.com/stretchr/testify/require"
)

// setupTestFixture starts a provider with the development realm and a stups_kio client.
// The issuer is the server's own URL.
func setupTestFixture(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	srv := httptest.NewUnstartedServer(nil)
	t.Cleanup(srv.Close)

	t.Setenv("ENV", "TEST")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("ISSUER_URL", "http://"+srv.Listener.Addr().String())
	t.Setenv("REALMS_FILE", "")
	t.Setenv("REALMS", "/test,/services")
	t.Setenv("REALM_STORE", config.StoreMemory)
	cfg := config.New()

	userRepo := fakeuserrepo.NewFakeUserRepo()
	clientRepo := fakeclientrepo.NewFakeClientRepo()
	require.NoError(t, seed.Dev().Apply(ctx, userRepo, clientRepo))
	kio := &clients.Client{ID: "stups_kio", Scopes: []string{"uid"}}
	require.NoError(t, kio.SetSecret("s3cret"))
	require.NoError(t, clientRepo.Upsert(ctx, "/services", kio))

	registry := realms.NewRegistry()
	scopes, err := server.InitialiseRealms(ctx, cfg, registry, server.Backend{
		Users:   userRepo,
		Clients: clientRepo,
	})
	require.NoError(t, err)

	ring := keyring.New()
	require.NoError(t, ring.Initialize(ctx))

	s, err := server.New(cfg, registry, ring, server.WithScopesSupported(scopes))
	require.NoError(t, err)
	srv.Config.Handler = s
	srv.Start()
	return srv.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := app.NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestTokenCommand tests both grants through the CLI, with and without verification.
func TestTokenCommand(t *testing.T) {
	provider := setupTestFixture(t)

	t.Run("password grant verified", func(t *testing.T) {
		out, err := execute(t, "token", "--provider", provider, "--realm", "/test",
			"--username", "klaus", "--password", "test", "--scope", "uid,name", "--verify")
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		require.Equal(t, "Bearer", body["token_type"])
		require.Equal(t, "uid name", body["scope"])
		require.Equal(t, "/test", body["realm"])

		claims, ok := body["claims"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "klaus", claims["sub"])
		require.Equal(t, provider, claims["iss"])
	})

	t.Run("client credentials raw", func(t *testing.T) {
		out, err := execute(t, "token", "--provider", provider, "--realm", "/services",
			"--client-id", "stups_kio", "--client-secret", "s3cret", "--raw")
		require.NoError(t, err)
		require.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
	})

	t.Run("rejected credentials are not retried", func(t *testing.T) {
		_, err := execute(t, "token", "--provider", provider, "--realm", "/test",
			"--username", "klaus", "--password", "wrong", "--retries", "10")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid_grant")
	})

	t.Run("missing username", func(t *testing.T) {
		_, err := execute(t, "token", "--provider", provider, "--realm", "/test")
		require.Error(t, err)
	})

	t.Run("unknown grant", func(t *testing.T) {
		_, err := execute(t, "token", "--provider", provider, "--realm", "/test", "--grant", "implicit")
		require.Error(t, err)
	})
}

func TestDiscoveryCommand(t *testing.T) {
	provider := setupTestFixture(t)

	out, err := execute(t, "discovery", "--provider", provider)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Equal(t, provider, doc["issuer"])
	require.Equal(t, provider+"/oauth2/v3/certs", doc["jwks_uri"])
	require.Equal(t, provider+"/oauth2/access_token", doc["token_endpoint"])
}

func TestDiscoveryCommand_Unreachable(t *testing.T) {
	_, err := execute(t, "discovery", "--provider", "http://127.0.0.1:1", "--retries", "1")
	require.Error(t, err)
}
