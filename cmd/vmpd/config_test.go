package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvmd/vmp/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmpd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadServiceConfig(t *testing.T) {
	path := writeConfig(t, `
listen_addr = "127.0.0.1:19390"
max_output = 65536
log_level = "debug"
disabled_commands = ["delete_report", "run_wizard"]

[[user]]
name = "admin"
password = "secret"
role = "Admin"
timezone = "Europe/Berlin"

[[user]]
name = "viewer"
password = "ro"
`)

	cfg, err := loadServiceConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:19390", cfg.ListenAddr)
	assert.Equal(t, 65536, cfg.MaxOutput)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"delete_report", "run_wizard"}, cfg.Disabled)

	assert.Equal(t, domain.StaticUser{
		Password: "secret",
		Role:     "Admin",
		Timezone: "Europe/Berlin",
	}, cfg.Users["admin"])
	assert.Equal(t, domain.StaticUser{Password: "ro"}, cfg.Users["viewer"])
}

func TestLoadServiceConfigDefaults(t *testing.T) {
	cfg, err := loadServiceConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, ":9390", cfg.ListenAddr)
	assert.Equal(t, 0, cfg.MaxOutput)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Disabled)
	assert.Empty(t, cfg.Users)
}

func TestLoadServiceConfigRejectsAnonymousUser(t *testing.T) {
	_, err := loadServiceConfig(writeConfig(t, `
[[user]]
password = "x"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestLoadServiceConfigMissingFile(t *testing.T) {
	_, err := loadServiceConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
