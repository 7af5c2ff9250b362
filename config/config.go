// Package config loads the client configuration from a YAML file with
// environment overrides.
//
// The file layout mirrors the platform's dashboard configuration: an api
// section (base_url, api_key, ws_url, auth_scheme), an app section, and a
// features section. Environment variables always win over file values; a
// local .env file is honored when present.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cryptolytica/goclient/rest"
)

// --------------------------------------------------------------------------------
// Constants

// Environment variables recognized as overrides.
const (
	EnvBaseURL    = "API_BASE_URL"
	EnvAPIKey     = "API_KEY"
	EnvWSURL      = "WS_URL"
	EnvAuthScheme = "AUTH_SCHEME"
)

// --------------------------------------------------------------------------------
// Types

// Config is the full client configuration.
type Config struct {
	API      APIConfig     `yaml:"api"`
	App      AppConfig     `yaml:"app"`
	Features FeatureConfig `yaml:"features"`
}

// APIConfig holds the connection settings consumed by the client packages.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	WSURL      string `yaml:"ws_url"`
	AuthScheme string `yaml:"auth_scheme"`
}

// AppConfig holds presentation-level settings carried for the dashboard.
type AppConfig struct {
	Theme    string `yaml:"theme"`
	Language string `yaml:"language"`
	CacheTTL int    `yaml:"cache_ttl"`
}

// FeatureConfig toggles optional dashboard features.
type FeatureConfig struct {
	RealTimeUpdates bool `yaml:"real_time_updates"`
	Notifications   bool `yaml:"notifications"`
	DataExport      bool `yaml:"data_export"`
}

// --------------------------------------------------------------------------------
// Constructors

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			WSURL:      "ws://localhost:8001",
			AuthScheme: rest.AuthAPIKey.String(),
		},
		App: AppConfig{
			Theme:    "light",
			Language: "en",
			CacheTTL: 300,
		},
		Features: FeatureConfig{
			RealTimeUpdates: true,
			Notifications:   true,
			DataExport:      true,
		},
	}
}

// Load reads the configuration file at path, merges environment overrides,
// and normalizes the result.
//
// A missing file is not an error: defaults are used. A present but
// malformed file is an error.
func Load(path string) (Config, error) {
	// Best-effort: a missing .env file is fine.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.normalize()

	return cfg, nil
}

// --------------------------------------------------------------------------------
// Public Methods

// Scheme maps the configured auth_scheme name to a rest.AuthScheme.
//
// "bearer" selects Authorization: Bearer; anything else (including the
// empty default) selects the X-API-Key header when a key is present.
func (a APIConfig) Scheme() rest.AuthScheme {
	if a.APIKey == "" {
		return rest.AuthNone
	}

	if strings.EqualFold(a.AuthScheme, "bearer") {
		return rest.AuthBearer
	}

	return rest.AuthAPIKey
}

// Validate reports configuration errors that make the client unusable.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}

	return nil
}

// --------------------------------------------------------------------------------
// Private Methods

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}

	if v := os.Getenv(EnvAPIKey); v != "" {
		c.API.APIKey = v
	}

	if v := os.Getenv(EnvWSURL); v != "" {
		c.API.WSURL = v
	}

	if v := os.Getenv(EnvAuthScheme); v != "" {
		c.API.AuthScheme = v
	}
}

// normalize strips trailing slashes so endpoint joining is unambiguous.
func (c *Config) normalize() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	c.API.WSURL = strings.TrimRight(c.API.WSURL, "/")
}
