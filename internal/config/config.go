package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIKey                string        `mapstructure:"gidipin_api_key"`
	BaseURL               string        `mapstructure:"gidipin_base_url"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	RedirectURI  string   `mapstructure:"redirect_uri"`
	ScopesRaw    string   `mapstructure:"signin_scopes"`
	Scopes       []string `mapstructure:"-"`
	CallbackAddr string   `mapstructure:"callback_addr"`

	StateStoreType       string        `mapstructure:"state_store_type"`
	BBoltPath            string        `mapstructure:"bbolt_path"`
	StateTTLSeconds      int64         `mapstructure:"state_ttl_seconds"`
	StateCleanupSeconds  int64         `mapstructure:"state_cleanup_interval_seconds"`
	StateTTL             time.Duration `mapstructure:"-"`
	StateCleanupInterval time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "gidipin")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("gidipin_api_key", "")
	v.SetDefault("gidipin_base_url", "https://api.gidipin.com/api/v1")
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("redirect_uri", "http://localhost:8085/callback")
	v.SetDefault("signin_scopes", "basic")
	v.SetDefault("callback_addr", ":8085")
	v.SetDefault("state_store_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/signin-state.db")
	v.SetDefault("state_ttl_seconds", int64((15*time.Minute)/time.Second))
	v.SetDefault("state_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("publishers_file", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.StateTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid state_ttl_seconds (must be positive seconds)")
	}
	if cfg.StateCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid state_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StateTTL = time.Duration(cfg.StateTTLSeconds) * time.Second
	cfg.StateCleanupInterval = time.Duration(cfg.StateCleanupSeconds) * time.Second

	cfg.Scopes = SplitScopes(cfg.ScopesRaw)

	return &cfg, nil
}

// SplitScopes parses a comma separated scope list, dropping blanks.
func SplitScopes(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Redacted returns a copy safe for logging.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	return c
}
