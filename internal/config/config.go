// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token      string  `yaml:"token"`
	Mode       string  `yaml:"mode"` // polling | webhook
	WebhookURL string  `yaml:"webhook_url"`
	ChannelID  int64   `yaml:"channel_id"` // target channel for notifications
	Workers    int     `yaml:"workers"`    // update workers
	AdminIDs   []int64 `yaml:"admin_ids"`
}

type NotionConfig struct {
	Token         string  `yaml:"token"`
	DatabaseID    string  `yaml:"database_id"`
	WebhookSecret string  `yaml:"webhook_secret"`
	BaseURL       string  `yaml:"base_url"`
	Version       string  `yaml:"version"` // Notion-Version header
	RateRPS       float64 `yaml:"rate_rps"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	WebhookPath string `yaml:"webhook_path"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // optional; empty disables the delivery log
}

type RedisConfig struct {
	URL      string `yaml:"url"` // optional; empty disables rate limits and page locks
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Notion   NotionConfig   `yaml:"notion"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads a YAML config file, expands ${ENV} references and applies
// defaults plus minimal validation.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhook/notion"
	}
	if cfg.Notion.BaseURL == "" {
		cfg.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if cfg.Notion.Version == "" {
		cfg.Notion.Version = "2022-06-28"
	}
	if cfg.Notion.RateRPS <= 0 {
		cfg.Notion.RateRPS = 3
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Bot.ChannelID == 0 {
		return nil, errors.New("bot.channel_id is required")
	}
	if cfg.Notion.Token == "" {
		return nil, errors.New("notion.token is required")
	}
	if cfg.Notion.DatabaseID == "" {
		return nil, errors.New("notion.database_id is required")
	}
	switch strings.ToLower(cfg.Bot.Mode) {
	case "polling":
	case "webhook":
		if cfg.Bot.WebhookURL == "" {
			return nil, errors.New("bot.webhook_url is required when bot.mode is webhook")
		}
	default:
		return nil, fmt.Errorf("bot.mode must be polling or webhook, got %q", cfg.Bot.Mode)
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		cfg.Server.WebhookPath = "/" + cfg.Server.WebhookPath
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
