package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmathy/carlink/core/model"
	"github.com/kmathy/carlink/infra/logger"
)

type staticAuth struct{ token string }

func (a staticAuth) SetAuthHeader(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, staticAuth{token: "tok-1"}, logger.NopLogger{})
}

func TestFetchReturnsRawPayload(t *testing.T) {
	var gotPath, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"soc":66}`))
	})

	data, err := c.Fetch(context.Background(), "VIN123", model.DomainCharging)
	require.NoError(t, err)
	assert.JSONEq(t, `{"soc":66}`, string(data))
	assert.Equal(t, "/api/v2/charging/VIN123", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestFetchDomainPathOverrides(t *testing.T) {
	cases := []struct {
		domain model.Domain
		path   string
	}{
		{model.DomainInfo, "/api/v2/garage/vehicles/VIN123"},
		{model.DomainStatus, "/api/v2/vehicle-status/VIN123"},
		{model.DomainPositions, "/api/v2/maps/positions/VIN123"},
		{model.DomainDrivingRange, "/api/v2/vehicle-status/driving-range/VIN123"},
		{model.DomainAirConditioning, "/api/v2/air-conditioning/VIN123"},
	}
	for _, tc := range cases {
		var gotPath string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Write([]byte(`{}`))
		})
		_, err := c.Fetch(context.Background(), "VIN123", tc.domain)
		require.NoError(t, err, tc.domain)
		assert.Equal(t, tc.path, gotPath, tc.domain)
	}
}

func TestFetchUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Fetch(context.Background(), "VIN123", model.DomainCharging)
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestFetchServerErrorCarriesStatusAndBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	})
	_, err := c.Fetch(context.Background(), "VIN123", model.DomainCharging)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Contains(t, statusErr.Body, "backend exploded")
}

func TestSendCommandReturnsOperationID(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"id":"op-42"}`))
	})

	id, err := c.SendCommand(context.Background(), "VIN123", model.SetChargeLimit(80))
	require.NoError(t, err)
	assert.Equal(t, "op-42", id)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, gotPath, "/api/v1/vehicles/VIN123/")
	assert.JSONEq(t, `{"targetSOCInPercent":80}`, gotBody)
}

func TestSendCommandWithoutBodyOmitsContentType(t *testing.T) {
	var gotCT string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		w.Write([]byte(`{"id":"op-1"}`))
	})

	_, err := c.SendCommand(context.Background(), "VIN123", model.Wakeup())
	require.NoError(t, err)
	assert.Empty(t, gotCT)
}

func TestSendCommandRejectsMissingOperationID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	_, err := c.SendCommand(context.Background(), "VIN123", model.StartCharging())
	assert.ErrorContains(t, err, "no operation id")
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Error(t, cfg.Validate())

	cfg.BaseURL = "https://api.example.com"
	assert.NoError(t, cfg.Validate())
}
