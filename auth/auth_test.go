package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTokenCachesUntilExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := newTokenServer(t, &hits)
	c := NewClientCred(Conf{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL})

	first, err := c.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first)

	second, err := c.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestForceRefreshDiscardsCachedToken(t *testing.T) {
	var hits atomic.Int32
	srv := newTokenServer(t, &hits)
	c := NewClientCred(Conf{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL})

	first, err := c.GetToken(context.Background())
	require.NoError(t, err)

	refreshed, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, refreshed)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSetAuthHeader(t *testing.T) {
	var hits atomic.Int32
	srv := newTokenServer(t, &hits)
	c := NewClientCred(Conf{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL})

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	require.NoError(t, c.SetAuthHeader(req))
	assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
}

func TestGetTokenPropagatesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_client", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	c := NewClientCred(Conf{ClientID: "cid", ClientSecret: "bad", TokenURL: srv.URL})

	_, err := c.GetToken(context.Background())
	assert.ErrorContains(t, err, "failed to get token")
}
