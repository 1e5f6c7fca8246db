package server_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/planb-provider/server"
	"github.com/stretchr/testify/require"
)

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, server.RouteOAuth2Token, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.168.1.1:12345"
	return req
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", server.IPKeyExtractor(req))
	})

	t.Run("ignores forwarding headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "192.168.1.1", server.IPKeyExtractor(req))
	})
}

// TestForwardedIPKeyExtractor tests that X-Forwarded-For is only read behind a trusted proxy.
func TestForwardedIPKeyExtractor(t *testing.T) {
	trusted, err := server.ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)
	extract := server.ForwardedIPKeyExtractor(trusted)

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "untrusted peer", remoteAddr: "198.51.100.7:4000", forwarded: "203.0.113.1", want: "198.51.100.7"},
		{name: "trusted peer", remoteAddr: "192.168.1.1:4000", forwarded: "203.0.113.1", want: "203.0.113.1"},
		{name: "client supplied hops are skipped", remoteAddr: "10.1.2.3:4000", forwarded: "1.1.1.1, 203.0.113.9, 10.0.0.5", want: "203.0.113.9"},
		{name: "only proxies", remoteAddr: "10.1.2.3:4000", forwarded: "10.0.0.5", want: "10.1.2.3"},
		{name: "no header", remoteAddr: "10.1.2.3:4000", want: "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			require.Equal(t, tt.want, extract(req))
		})
	}

	t.Run("no trusted proxies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		require.Equal(t, "10.1.2.3", server.ForwardedIPKeyExtractor(nil)(req))
	})
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := server.ParseTrustedProxies([]string{"10.0.0.1/8", "::1", "192.168.1.1"})
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "::1/128", "192.168.1.1/32"}, []string{
		prefixes[0].String(), prefixes[1].String(), prefixes[2].String(),
	})

	_, err = server.ParseTrustedProxies([]string{"proxy.internal"})
	require.Error(t, err)
}

func TestPrincipalKeyExtractor(t *testing.T) {
	t.Run("username", func(t *testing.T) {
		req := tokenRequest(url.Values{"username": {"klaus"}, "client_id": {"kio"}})
		require.Equal(t, "klaus", server.PrincipalKeyExtractor(req))
	})

	t.Run("client id", func(t *testing.T) {
		req := tokenRequest(url.Values{"client_id": {"kio"}})
		require.Equal(t, "kio", server.PrincipalKeyExtractor(req))
	})

	t.Run("basic auth", func(t *testing.T) {
		req := tokenRequest(url.Values{})
		req.SetBasicAuth("kio", "secret")
		require.Equal(t, "kio", server.PrincipalKeyExtractor(req))
	})

	t.Run("anonymous", func(t *testing.T) {
		require.Empty(t, server.PrincipalKeyExtractor(tokenRequest(url.Values{})))
	})
}

// TestRealmPrincipalKeyExtractor tests that the key separates realms and ignores the caller's address.
func TestRealmPrincipalKeyExtractor(t *testing.T) {
	key := server.RealmPrincipalKeyExtractor(tokenRequest(url.Values{"realm": {"/test"}, "username": {"klaus"}}))
	require.Equal(t, "/test|klaus", key)

	other := server.RealmPrincipalKeyExtractor(tokenRequest(url.Values{"realm": {"/services"}, "username": {"klaus"}}))
	require.NotEqual(t, key, other)

	moved := tokenRequest(url.Values{"realm": {"/test"}, "username": {"klaus"}})
	moved.RemoteAddr = "198.51.100.7:4000"
	moved.Header.Set("X-Forwarded-For", "203.0.113.1")
	require.Equal(t, key, server.RealmPrincipalKeyExtractor(moved))

	require.Empty(t, server.RealmPrincipalKeyExtractor(tokenRequest(url.Values{"realm": {"/test"}})))
}

func TestRateLimitMiddleware(t *testing.T) {
	limit := server.RateLimitMiddleware(server.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Hour,
		Burst:             1,
	}, server.RealmPrincipalKeyExtractor)

	handler := limit(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	form := url.Values{"realm": {"/test"}, "username": {"klaus"}}

	rec := httptest.NewRecorder()
	handler(rec, tokenRequest(form))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, tokenRequest(form))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "slow_down")
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	t.Run("rotating X-Forwarded-For shares the budget", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			req := tokenRequest(form)
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
			rec := httptest.NewRecorder()
			handler(rec, req)
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	})

	t.Run("disabled when unconfigured", func(t *testing.T) {
		passthrough := server.RateLimitMiddleware(server.RateLimitConfig{}, server.RealmPrincipalKeyExtractor)(
			func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			passthrough(rec, tokenRequest(form))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}
