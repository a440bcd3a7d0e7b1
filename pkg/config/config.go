// Package config provides the configuration surface for sheetsink.
//
// The target takes a Singer-style JSON config file naming the destination
// spreadsheet and a service-account credentials file, plus optional
// overrides for the adaptive sink tunables. Every field can also be set
// through SHEETSINK_* environment variables (SHEETSINK_SPREADSHEET_URL,
// SHEETSINK_SINK_MAX_LIMIT, ...).
//
// Example config file:
//
//	{
//	  "spreadsheet_url": "https://docs.google.com/spreadsheets/d/abc123/edit",
//	  "credentials_path": ".secrets/service_account.json",
//	  "sink": {"default_size": 50, "limit_increment": 20, "max_limit": 250}
//	}
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Default sink tunables, in rows.
const (
	DefaultSinkSize       = 50
	DefaultLimitIncrement = 20
	DefaultMaxSinkLimit   = 250
)

// DefaultCredentialsPath is where the service-account key is looked up when
// the config does not name one.
const DefaultCredentialsPath = ".secrets/service_account.json"

// Config is the full target configuration.
type Config struct {
	// SpreadsheetURL locates the destination spreadsheet (full URL or bare ID)
	SpreadsheetURL string `json:"spreadsheet_url" mapstructure:"spreadsheet_url"`
	// CredentialsPath points at the service-account key file
	CredentialsPath string `json:"credentials_path" mapstructure:"credentials_path"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	// Sink holds the adaptive batching tunables
	Sink SinkSettings `json:"sink" mapstructure:"sink"`
}

// SinkSettings are the three tunables of the batching controller.
type SinkSettings struct {
	// DefaultSize is the initial flush threshold per stream
	DefaultSize int `json:"default_size" mapstructure:"default_size"`
	// LimitIncrement is the additive increase applied on rate limiting
	LimitIncrement int `json:"limit_increment" mapstructure:"limit_increment"`
	// MaxLimit is the ceiling past which rate limiting overflows the sink
	MaxLimit int `json:"max_limit" mapstructure:"max_limit"`
}

// Default returns a Config with stock values; SpreadsheetURL stays empty and
// must come from the file or environment.
func Default() *Config {
	return &Config{
		CredentialsPath: DefaultCredentialsPath,
		LogLevel:        "info",
		Sink: SinkSettings{
			DefaultSize:    DefaultSinkSize,
			LimitIncrement: DefaultLimitIncrement,
			MaxLimit:       DefaultMaxSinkLimit,
		},
	}
}

// Load reads the JSON config file at path, applies SHEETSINK_* environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix("SHEETSINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("credentials_path", defaults.CredentialsPath)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("sink.default_size", defaults.Sink.DefaultSize)
	v.SetDefault("sink.limit_increment", defaults.Sink.LimitIncrement)
	v.SetDefault("sink.max_limit", defaults.Sink.MaxLimit)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and tunable ranges.
func (c *Config) Validate() error {
	if c.SpreadsheetURL == "" {
		return fmt.Errorf("spreadsheet_url is required")
	}
	if c.CredentialsPath == "" {
		return fmt.Errorf("credentials_path is required")
	}
	if c.Sink.DefaultSize <= 0 {
		return fmt.Errorf("sink.default_size must be positive")
	}
	if c.Sink.LimitIncrement <= 0 {
		return fmt.Errorf("sink.limit_increment must be positive")
	}
	if c.Sink.MaxLimit < c.Sink.DefaultSize {
		return fmt.Errorf("sink.max_limit must be at least sink.default_size")
	}
	return nil
}
