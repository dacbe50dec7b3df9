//go:build !integration

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notion-telegram-relay/internal/config"
)

const minimalYAML = `
bot:
  token: "123:abc"
  channel_id: -1001234567890
notion:
  token: "secret_x"
  database_id: "db-1"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("minimal config gets defaults", func(t *testing.T) {
		cfg, err := config.LoadConfig(writeConfig(t, minimalYAML), false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Bot.Mode != "polling" {
			t.Errorf("mode = %q", cfg.Bot.Mode)
		}
		if cfg.Server.Port != 8000 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
		if cfg.Server.WebhookPath != "/webhook/notion" {
			t.Errorf("webhook path = %q", cfg.Server.WebhookPath)
		}
		if cfg.Notion.BaseURL != "https://api.notion.com/v1" {
			t.Errorf("base url = %q", cfg.Notion.BaseURL)
		}
		if cfg.Notion.Version != "2022-06-28" {
			t.Errorf("version = %q", cfg.Notion.Version)
		}
		if cfg.Notion.RateRPS != 3 {
			t.Errorf("rate = %v", cfg.Notion.RateRPS)
		}
	})

	t.Run("environment references are expanded", func(t *testing.T) {
		t.Setenv("TEST_BOT_TOKEN", "999:token-from-env")
		yaml := strings.Replace(minimalYAML, `"123:abc"`, `"${TEST_BOT_TOKEN}"`, 1)
		cfg, err := config.LoadConfig(writeConfig(t, yaml), false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Bot.Token != "999:token-from-env" {
			t.Errorf("token = %q", cfg.Bot.Token)
		}
	})

	t.Run("missing required fields fail", func(t *testing.T) {
		cases := []struct {
			name string
			yaml string
		}{
			{"no bot token", strings.Replace(minimalYAML, `token: "123:abc"`, `token: ""`, 1)},
			{"no channel", strings.Replace(minimalYAML, "channel_id: -1001234567890", "channel_id: 0", 1)},
			{"no notion token", strings.Replace(minimalYAML, `token: "secret_x"`, `token: ""`, 1)},
			{"no database id", strings.Replace(minimalYAML, `database_id: "db-1"`, `database_id: ""`, 1)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := config.LoadConfig(writeConfig(t, tc.yaml), false); err == nil {
					t.Error("expected an error")
				}
			})
		}
	})

	t.Run("webhook mode requires a webhook url", func(t *testing.T) {
		yaml := strings.Replace(minimalYAML, "bot:\n", "bot:\n  mode: webhook\n", 1)
		if _, err := config.LoadConfig(writeConfig(t, yaml), false); err == nil {
			t.Error("expected an error without webhook_url")
		}

		yaml = strings.Replace(minimalYAML, "bot:\n", "bot:\n  mode: webhook\n  webhook_url: \"https://example.com/telegram/webhook\"\n", 1)
		cfg, err := config.LoadConfig(writeConfig(t, yaml), false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Bot.Mode != "webhook" {
			t.Errorf("mode = %q", cfg.Bot.Mode)
		}
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		yaml := strings.Replace(minimalYAML, "bot:\n", "bot:\n  mode: carrier-pigeon\n", 1)
		if _, err := config.LoadConfig(writeConfig(t, yaml), false); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("dev flag lands in runtime config", func(t *testing.T) {
		cfg, err := config.LoadConfig(writeConfig(t, minimalYAML), true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev mode")
		}
	})
}
