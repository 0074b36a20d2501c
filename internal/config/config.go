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

	APIBaseURL        string        `mapstructure:"api_base_url"`
	APITimeoutSeconds int64         `mapstructure:"api_timeout_seconds"`
	APITimeout        time.Duration `mapstructure:"-"`
	WithCredentials   bool          `mapstructure:"with_credentials"`

	SessionStoreType  string        `mapstructure:"session_store_type"`
	SessionPath       string        `mapstructure:"session_path"`
	SessionTTLSeconds int64         `mapstructure:"session_ttl_seconds"`
	SessionTTL        time.Duration `mapstructure:"-"`

	SheetsLibraryURL  string `mapstructure:"sheets_library_url"`
	SheetsLibraryPath string `mapstructure:"sheets_library_path"`

	PublishersFile   string `mapstructure:"publishers_file"`
	DispatchSchedule string `mapstructure:"dispatch_schedule"`

	ProxyListen    string `mapstructure:"proxy_listen"`
	ProxyBackend   string `mapstructure:"proxy_backend"`
	ProxyStaticDir string `mapstructure:"proxy_static_dir"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "kintai-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_base_url", "http://localhost:3001/api")
	v.SetDefault("api_timeout_seconds", 10)
	v.SetDefault("with_credentials", true)
	v.SetDefault("session_store_type", "bbolt")
	v.SetDefault("session_path", "./data/session.db")
	v.SetDefault("session_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("sheets_library_url", "https://cdnjs.cloudflare.com/ajax/libs/xlsx/0.18.5/xlsx.full.min.js")
	v.SetDefault("sheets_library_path", "./web/vendor/xlsx.full.min.js")
	v.SetDefault("publishers_file", "")
	v.SetDefault("dispatch_schedule", "0 0 6 * * *")
	v.SetDefault("proxy_listen", "0.0.0.0:3001")
	v.SetDefault("proxy_backend", "http://backend:5000")
	v.SetDefault("proxy_static_dir", "./web")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finalize validates raw values and derives durations.
func (c *Config) finalize() error {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}

	if c.APITimeoutSeconds <= 0 {
		return fmt.Errorf("invalid api_timeout_seconds (must be positive seconds)")
	}
	c.APITimeout = time.Duration(c.APITimeoutSeconds) * time.Second

	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("invalid session_ttl_seconds (must be positive seconds)")
	}
	c.SessionTTL = time.Duration(c.SessionTTLSeconds) * time.Second

	if strings.TrimSpace(c.DispatchSchedule) == "" {
		return fmt.Errorf("dispatch_schedule is required")
	}
	return nil
}
