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
	path := filepath.Join(t.TempDir(), "mdcd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadServeConfig(t *testing.T) {
	path := writeConfig(t, `
listen = ":9000"
link = "tcp://10.0.0.7"
read_timeout = "2s"
rate = 1.5

[[display]]
name = "lobby"
id = 1

[[display]]
name = "hall"
id = 2
`)

	cfg := defaultServeConfig()
	require.NoError(t, loadServeConfig(path, &cfg))

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "tcp://10.0.0.7", cfg.Link)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout, "unset keys keep their defaults")
	assert.Equal(t, 1.5, cfg.Rate)
	assert.Equal(t, 2, cfg.Burst)
	assert.Equal(t, []displayConfig{{Name: "lobby", ID: 1}, {Name: "hall", ID: 2}}, cfg.Displays)
	assert.NoError(t, cfg.validate())
}

func TestLoadServeConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `listen = `},
		{"unknown key", `lisen = ":8000"`},
		{"bad duration", `read_timeout = "soon"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultServeConfig()
			assert.Error(t, loadServeConfig(writeConfig(t, tt.content), &cfg))
		})
	}

	cfg := defaultServeConfig()
	assert.Error(t, loadServeConfig(filepath.Join(t.TempDir(), "missing.toml"), &cfg))
}

func TestServeConfigValidate(t *testing.T) {
	valid := func() serveConfig {
		cfg := defaultServeConfig()
		cfg.Link = "/dev/ttyUSB0"
		cfg.Displays = []displayConfig{{Name: "a", ID: 0}}
		return cfg
	}
	require.NoError(t, valid().validate())

	tests := []struct {
		name   string
		modify func(*serveConfig)
	}{
		{"no link", func(c *serveConfig) { c.Link = "" }},
		{"zero rate", func(c *serveConfig) { c.Rate = 0 }},
		{"zero burst", func(c *serveConfig) { c.Burst = 0 }},
		{"unnamed display", func(c *serveConfig) { c.Displays = append(c.Displays, displayConfig{ID: 3}) }},
		{"duplicate name", func(c *serveConfig) { c.Displays = append(c.Displays, displayConfig{Name: "a", ID: 3}) }},
		{"broadcast id", func(c *serveConfig) { c.Displays = append(c.Displays, displayConfig{Name: "b", ID: 0xFE}) }},
		{"id out of range", func(c *serveConfig) { c.Displays = append(c.Displays, displayConfig{Name: "b", ID: 300}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestServeFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
listen = ":9000"
link = "tcp://10.0.0.7"
rate = 1.5
`)
	cmd := serveCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--listen", "9100", "--burst", "7"}))

	flagged := defaultServeConfig()
	flagged.Listen = "9100"
	flagged.Burst = 7

	cfg := defaultServeConfig()
	require.NoError(t, loadServeConfig(path, &cfg))
	overrideFromFlags(cmd, &cfg, flagged)

	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, 7, cfg.Burst)
	assert.Equal(t, 1.5, cfg.Rate)
	assert.Equal(t, "tcp://10.0.0.7", cfg.Link)
}
