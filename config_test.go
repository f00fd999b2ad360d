package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
geofabrik:
  base_url: http://mirror.local
probe:
  delay: 2500ms
  methods: [HEAD]
download:
  output_dir: /tmp/pbf
log:
  level: debug
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://mirror.local", cfg.Geofabrik.BaseURL)
	assert.Equal(t, Duration(2500*time.Millisecond), cfg.Probe.Delay)
	assert.Equal(t, []string{"HEAD"}, cfg.Probe.Methods)
	assert.Equal(t, "/tmp/pbf", cfg.Download.OutputDir)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, Duration(30*time.Second), cfg.Probe.Timeout)
	assert.Equal(t, "osm-mirror-locator", cfg.Probe.UserAgent)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read config file")

	_, err = loadConfig(writeConfig(t, "probe:\n  delay: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not unmarshal config file")
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Geofabrik.BaseURL = "download.geofabrik.de" }},
		{"ftp base url", func(c *Config) { c.Geofabrik.BaseURL = "ftp://download.geofabrik.de" }},
		{"negative delay", func(c *Config) { c.Probe.Delay = Duration(-time.Second) }},
		{"negative timeout", func(c *Config) { c.Download.Timeout = Duration(-time.Second) }},
		{"no methods", func(c *Config) { c.Probe.Methods = nil }},
		{"bad method", func(c *Config) { c.Probe.Methods = []string{"POST"} }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := loadConfig("config.example.yaml")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultConfig().Probe, cfg.Probe)
}
