package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
api:
  url: http://overlord.local:8080
listen:
  host: 0.0.0.0
  port: 10000
advertise:
  host: 10.0.0.5
heartbeat:
  initial_delay: 2s
  max_delay: 1m
  backoff_factor: 2
modes:
  image_cache_dir: /tmp/images
logging:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://overlord.local:8080", cfg.API.URL)
	assert.Equal(t, AddressConfig{Host: "0.0.0.0", Port: 10000}, cfg.Listen)
	assert.Equal(t, AddressConfig{Host: "10.0.0.5", Port: DefaultPort}, cfg.Advertise)
	assert.Equal(t, 2*time.Second, cfg.Heartbeat.InitialDelay)
	assert.Equal(t, time.Minute, cfg.Heartbeat.MaxDelay)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.RequestTimeout)
	assert.Equal(t, 2.0, cfg.Heartbeat.BackoffFactor)
	assert.Equal(t, 0.3, cfg.Heartbeat.MinJitter)
	assert.Equal(t, 0.6, cfg.Heartbeat.MaxJitter)
	assert.Equal(t, "/tmp/images", cfg.Modes.ImageCacheDir)
	assert.Equal(t, LoggingConfig{Level: "debug", Pretty: true}, cfg.Logging)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEETH_TEST_API", "https://overlord.example")
	path := writeConfig(t, "api:\n  url: ${TEETH_TEST_API}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://overlord.example", cfg.API.URL)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"bad duration": "api:\n  url: http://x\nheartbeat:\n  max_delay: soon\n",
		"not yaml":     "api: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestValidateRejectsLoadedValues(t *testing.T) {
	tests := map[string]string{
		"missing api url":   "listen:\n  port: 1\n",
		"bad port":          "api:\n  url: http://x\nlisten:\n  port: 70000\n",
		"inverted jitter":   "api:\n  url: http://x\nheartbeat:\n  min_jitter: 0.9\n  max_jitter: 0.1\n",
		"max below initial": "api:\n  url: http://x\nheartbeat:\n  initial_delay: 10s\n  max_delay: 1s\n",
		"bad scheme":        "api:\n  url: ftp://overlord\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, content))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOverridesFillMissingAPIURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, "advertise:\n  host: 10.0.0.5\n"))
	require.NoError(t, err)

	apiURL := "http://overlord.local:8080"
	cfg.Apply(Overrides{APIURL: &apiURL})

	require.NoError(t, cfg.Validate())
	assert.Equal(t, apiURL, cfg.API.URL)
	assert.Equal(t, "10.0.0.5", cfg.Advertise.Host)
}

func TestOverridesReplaceFileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api:
  url: ftp://wrong
listen:
  host: 0.0.0.0
  port: 70000
logging:
  level: debug
`))
	require.NoError(t, err)

	apiURL, port, pretty := "https://overlord", 8080, true
	cfg.Apply(Overrides{APIURL: &apiURL, ListenPort: &port, PrettyLogs: &pretty})

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://overlord", cfg.API.URL)
	assert.Equal(t, AddressConfig{Host: "0.0.0.0", Port: 8080}, cfg.Listen)
	assert.Equal(t, LoggingConfig{Level: "debug", Pretty: true}, cfg.Logging)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestDefaultsNeedOnlyAPIURL(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.API.URL = "http://overlord"
	require.NoError(t, cfg.Validate())

	hb := cfg.HeartbeatConfig()
	assert.Equal(t, time.Second, hb.InitialDelay)
	assert.Equal(t, 300*time.Second, hb.MaxDelay)
	assert.Equal(t, 2.7, hb.BackoffFactor)
}
