package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validYAML = `
user_id: user-1
vins:
  - VIN123
  - VIN456
auth:
  client_id: cid
  client_secret: secret
  token_url: https://auth.example.com/token
api:
  base_url: https://api.example.com
mqtt:
  broker: ssl://broker.example.com:8883
  use_tls: true
session:
  debounce_window_seconds: 20
`

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "user-1", cfg.UserID)
	assert.Equal(t, []string{"VIN123", "VIN456"}, cfg.VINs)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "ssl://broker.example.com:8883", cfg.MQTT.Broker)
	assert.True(t, cfg.MQTT.UseTLS)

	// Explicit value kept, untouched fields defaulted.
	assert.Equal(t, 20, cfg.Session.DebounceWindowSeconds)
	assert.Equal(t, 300, cfg.Session.OperationTimeoutSeconds)
	assert.Equal(t, 15, cfg.MQTT.KeepAliveSeconds)
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "user_id": "user-1",
  "vins": ["VIN123"],
  "api": {"base_url": "https://api.example.com"},
  "mqtt": {"broker": "tcp://broker:1883"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "user-1", cfg.UserID)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	t.Setenv("CARLINK_API__BASE_URL", "https://override.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
}

func TestLoadRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no user id",
			content: `
vins: [VIN123]
api: {base_url: https://api.example.com}
mqtt: {broker: tcp://broker:1883}
`,
			wantErr: "user_id",
		},
		{
			name: "no vins",
			content: `
user_id: user-1
api: {base_url: https://api.example.com}
mqtt: {broker: tcp://broker:1883}
`,
			wantErr: "vin",
		},
		{
			name: "no api base url",
			content: `
user_id: user-1
vins: [VIN123]
mqtt: {broker: tcp://broker:1883}
`,
			wantErr: "base_url",
		},
		{
			name: "no broker",
			content: `
user_id: user-1
vins: [VIN123]
api: {base_url: https://api.example.com}
`,
			wantErr: "broker",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tc.content))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "user_id = 'user-1'"))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
