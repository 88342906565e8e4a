package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

// Config contains all runtime settings for the task bot.
type Config struct {
	Env string `yaml:"app_env" toml:"app_env" env:"APP_ENV" env-default:"prod"`

	BotToken         string `yaml:"bot_token" toml:"bot_token" env:"BOT_TOKEN" env-required:"true"`
	BotDebug         bool   `yaml:"bot_debug" toml:"bot_debug" env:"BOT_DEBUG" env-default:"false"`
	BotUpdateTimeout int    `yaml:"bot_update_timeout" toml:"bot_update_timeout" env:"BOT_UPDATE_TIMEOUT" env-default:"30"`

	BindAddr                 string        `yaml:"app_bind_addr" toml:"app_bind_addr" env:"APP_BIND_ADDR" env-default:":8080"`
	ShutdownTimeout          time.Duration `yaml:"app_shutdown_timeout" toml:"app_shutdown_timeout" env:"APP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	SessionInactivityTimeout time.Duration `yaml:"app_session_inactivity_timeout" toml:"app_session_inactivity_timeout" env:"APP_SESSION_INACTIVITY_TIMEOUT" env-default:"24h"`
	MetricsNamespace         string        `yaml:"app_metrics_namespace" toml:"app_metrics_namespace" env:"APP_METRICS_NAMESPACE" env-default:"taskbot"`
	AllowAnyOrigin           bool          `yaml:"app_allow_any_origin" toml:"app_allow_any_origin" env:"APP_ALLOW_ANY_ORIGIN" env-default:"false"`
	Timezone                 string        `yaml:"app_timezone" toml:"app_timezone" env:"APP_TIMEZONE" env-default:"Local"`

	DatabaseURL string `yaml:"database_url" toml:"database_url" env:"DATABASE_URL"`

	ScanInterval   time.Duration `yaml:"deadline_scan_interval" toml:"deadline_scan_interval" env:"DEADLINE_SCAN_INTERVAL" env-default:"60s"`
	UpcomingWindow time.Duration `yaml:"deadline_upcoming_window" toml:"deadline_upcoming_window" env:"DEADLINE_UPCOMING_WINDOW" env-default:"1h"`

	GatewayCallTimeout time.Duration `yaml:"gateway_call_timeout" toml:"gateway_call_timeout" env:"GATEWAY_CALL_TIMEOUT" env-default:"10s"`
	ChatTitleCacheTTL  time.Duration `yaml:"chat_title_cache_ttl" toml:"chat_title_cache_ttl" env:"CHAT_TITLE_CACHE_TTL" env-default:"10m"`
}

// Load reads an optional config file named by APP_CONFIG_FILE, then the
// environment (and a .env file if present), and validates the result.
// The file format (yaml, toml, json) follows its extension.
func Load() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf("APP_ENV must be one of local|dev|prod, got %q", c.Env)
	}
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.BotUpdateTimeout <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT must be positive")
	}
	if c.SessionInactivityTimeout < time.Minute {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 1m")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("DEADLINE_SCAN_INTERVAL must be positive")
	}
	if c.UpcomingWindow <= 0 {
		return fmt.Errorf("DEADLINE_UPCOMING_WINDOW must be positive")
	}
	if c.GatewayCallTimeout <= 0 {
		return fmt.Errorf("GATEWAY_CALL_TIMEOUT must be positive")
	}
	if c.ChatTitleCacheTTL <= 0 {
		return fmt.Errorf("CHAT_TITLE_CACHE_TTL must be positive")
	}
	return nil
}

// Location is the zone used to turn picked dates and clock times into instants.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
