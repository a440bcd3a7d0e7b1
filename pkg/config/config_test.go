package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"spreadsheet_url":"https://docs.google.com/spreadsheets/d/abc123/edit"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultCredentialsPath, cfg.CredentialsPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultSinkSize, cfg.Sink.DefaultSize)
	assert.Equal(t, DefaultLimitIncrement, cfg.Sink.LimitIncrement)
	assert.Equal(t, DefaultMaxSinkLimit, cfg.Sink.MaxLimit)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"spreadsheet_url": "abc123",
		"credentials_path": "/etc/creds.json",
		"log_level": "debug",
		"sink": {"default_size": 10, "limit_increment": 5, "max_limit": 40}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/creds.json", cfg.CredentialsPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Sink.DefaultSize)
	assert.Equal(t, 5, cfg.Sink.LimitIncrement)
	assert.Equal(t, 40, cfg.Sink.MaxLimit)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("SHEETSINK_LOG_LEVEL", "warn")
	path := writeConfig(t, `{"spreadsheet_url":"abc123"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadImproperJSON(t *testing.T) {
	path := writeConfig(t, `{"spreadsheet_url": `)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.SpreadsheetURL = "abc123"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	missing := valid()
	missing.SpreadsheetURL = ""
	assert.Error(t, missing.Validate())

	noCreds := valid()
	noCreds.CredentialsPath = ""
	assert.Error(t, noCreds.Validate())

	badSize := valid()
	badSize.Sink.DefaultSize = 0
	assert.Error(t, badSize.Validate())

	badIncrement := valid()
	badIncrement.Sink.LimitIncrement = -1
	assert.Error(t, badIncrement.Validate())

	badMax := valid()
	badMax.Sink.MaxLimit = badMax.Sink.DefaultSize - 1
	assert.Error(t, badMax.Validate())
}
