package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Env != "prod" {
		t.Fatalf("Env = %q, want prod", cfg.Env)
	}
	if cfg.ScanInterval != time.Minute {
		t.Fatalf("ScanInterval = %v, want 1m", cfg.ScanInterval)
	}
	if cfg.UpcomingWindow != time.Hour {
		t.Fatalf("UpcomingWindow = %v, want 1h", cfg.UpcomingWindow)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
	if cfg.Location() != time.Local {
		t.Fatalf("Location() = %v, want Local", cfg.Location())
	}
}

func TestLoadRequiresBotToken(t *testing.T) {
	setCoreEnvEmpty(t)
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing BOT_TOKEN error")
	}
}

func TestLoadUsesExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DEADLINE_SCAN_INTERVAL", "15s")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("DATABASE_URL", " postgres://localhost/tasks ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScanInterval != 15*time.Second || cfg.Env != "dev" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.DatabaseURL != "postgres://localhost/tasks" {
		t.Fatalf("DatabaseURL = %q, want trimmed", cfg.DatabaseURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"APP_ENV":                        "staging",
		"DEADLINE_SCAN_INTERVAL":         "0s",
		"APP_SESSION_INACTIVITY_TIMEOUT": "10s",
		"APP_TIMEZONE":                   "Mars/Olympus",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv("BOT_TOKEN", "123:abc")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q error = nil, want error", key, value)
			}
		})
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	setCoreEnvEmpty(t)
	path := filepath.Join(t.TempDir(), "taskbot.yaml")
	body := strings.Join([]string{
		`bot_token: "999:file"`,
		"deadline_upcoming_window: 30m",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("APP_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BotToken != "999:file" || cfg.UpcomingWindow != 30*time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_CONFIG_FILE",
		"APP_ENV",
		"BOT_TOKEN",
		"BOT_DEBUG",
		"BOT_UPDATE_TIMEOUT",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_TIMEZONE",
		"DATABASE_URL",
		"DEADLINE_SCAN_INTERVAL",
		"DEADLINE_UPCOMING_WINDOW",
		"GATEWAY_CALL_TIMEOUT",
		"CHAT_TITLE_CACHE_TTL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
