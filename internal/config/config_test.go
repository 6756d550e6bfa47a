package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OMCLI_DATA_DIR", dir)
	return dir
}

func TestDataDir_EnvOverride(t *testing.T) {
	dir := useTempDataDir(t)
	assert.Equal(t, dir, DataDir())
	assert.Equal(t, filepath.Join(dir, "config.toml"), Path())
	assert.Equal(t, filepath.Join(dir, "devices.json"), DevicesPath())
}

func TestLoad_MissingConfig(t *testing.T) {
	useTempDataDir(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOrCreate_GeneratesAPIKey(t *testing.T) {
	useTempDataDir(t)

	cfg, err := LoadOrCreate(7333, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Server.APIKey)
	assert.Equal(t, "http://127.0.0.1:7333", cfg.Server.URL)

	// A second run must keep the key but track the new address.
	again, err := LoadOrCreate(9000, "0.0.0.0")
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.APIKey, again.Server.APIKey)
	assert.Equal(t, "http://0.0.0.0:9000", again.Server.URL)
	assert.Equal(t, 9000, again.Server.Port)
}

func TestLoad_RoundTrip(t *testing.T) {
	useTempDataDir(t)

	cfg := &Config{
		Server: ServerConfig{
			URL:    "http://127.0.0.1:7333",
			APIKey: "key",
			Port:   7333,
			Bind:   "127.0.0.1",
		},
		APNs: &APNsConfig{
			KeyPath:  "/keys/AuthKey.p8",
			KeyID:    "KEY1",
			TeamID:   "TEAM1",
			BundleID: "com.example.app",
			Sandbox:  true,
		},
		Relay: &RelayConfig{
			APNsBundleID:                "com.example.app",
			MaxRequestsPerDevicePerHour: 10,
		},
	}
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key", loaded.Server.APIKey)
	require.NotNil(t, loaded.APNs)
	assert.Equal(t, "KEY1", loaded.APNs.KeyID)
	assert.True(t, loaded.APNs.Sandbox)
	require.NotNil(t, loaded.Relay)
	assert.Equal(t, 10, loaded.Relay.MaxRequestsPerDevicePerHour)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := useTempDataDir(t)
	raw := `
[server]
url = "http://127.0.0.1:7333"
api_key = "key"

[relay]
apns_bundle_id = "com.example.app"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(raw), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultBind, cfg.Server.Bind)
	require.NotNil(t, cfg.Relay)
	assert.Equal(t, DefaultRelayPort, cfg.Relay.Port)
	assert.Equal(t, DefaultRelayCap, cfg.Relay.MaxRequestsPerDevicePerHour)
	assert.Nil(t, cfg.APNs)
}

func TestRelayConfig_ToAPNsConfig(t *testing.T) {
	r := RelayConfig{
		APNsKeyPath:  "/keys/AuthKey.p8",
		APNsKeyID:    "KEY1",
		APNsTeamID:   "TEAM1",
		APNsBundleID: "com.example.app",
		APNsSandbox:  true,
	}
	cfg := r.ToAPNsConfig()
	assert.Equal(t, "/keys/AuthKey.p8", cfg.KeyPath)
	assert.Equal(t, "KEY1", cfg.KeyID)
	assert.Equal(t, "TEAM1", cfg.TeamID)
	assert.Equal(t, "com.example.app", cfg.BundleID)
	assert.True(t, cfg.Sandbox)
}
