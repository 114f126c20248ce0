// Package config provides YAML-based configuration loading for the agent.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level agent configuration, loaded from productif.yaml.
type Config struct {
	Timezone  string          `yaml:"timezone"`
	Database  DatabaseConfig  `yaml:"database"`
	Backend   BackendConfig   `yaml:"backend"`
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegraph TelegraphConfig `yaml:"telegraph"`
	Server    ServerConfig    `yaml:"server"`
	CheckIns  CheckInsConfig  `yaml:"checkins"`
}

// DatabaseConfig selects the SQL store for conversation state, contacts and
// the exchange log.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite file
}

// BackendConfig points at the application REST API the agent acts on.
type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// LLMConfig configures the completion model used for help answers and,
// optionally, intent classification.
type LLMConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Classify   bool   `yaml:"classify"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// AgentConfig holds conversation behavior settings.
type AgentConfig struct {
	StateBackend string `yaml:"state_backend"` // "db" or "redis"
	StateTTLMin  int    `yaml:"state_ttl_min"`
}

// RedisConfig is used when agent.state_backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TelegraphConfig selects and configures the chat platform.
type TelegraphConfig struct {
	Platform string         `yaml:"platform"` // "whatsapp", "slack", "discord"
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// WhatsAppConfig holds WhatsApp Cloud API credentials.
type WhatsAppConfig struct {
	PhoneNumberID string `yaml:"phone_number_id"`
	AccessToken   string `yaml:"access_token"`
	VerifyToken   string `yaml:"verify_token"`
	AppSecret     string `yaml:"app_secret"` // enables X-Hub-Signature-256 checks
	GraphURL      string `yaml:"graph_url"`
	APIVersion    string `yaml:"api_version"`
}

// SlackConfig holds Slack Socket Mode tokens.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds the Discord bot token.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// ServerConfig configures the HTTP server (webhooks, health, analytics).
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CheckInsConfig holds 5-field cron expressions for scheduled check-ins.
// An empty expression disables that check-in.
type CheckInsConfig struct {
	Morning string `yaml:"morning"`
	Evening string `yaml:"evening"`
}

// Load reads a YAML config file from path and returns a validated Config.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StateTTL is how long a pending conversation step stays valid.
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.Agent.StateTTLMin) * time.Minute
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/Paris"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "productif.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "productif_agent"
		}
	}
	if c.Backend.TimeoutSec == 0 {
		c.Backend.TimeoutSec = 15
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 30
	}
	if c.Agent.StateBackend == "" {
		c.Agent.StateBackend = "db"
	}
	if c.Agent.StateTTLMin == 0 {
		c.Agent.StateTTLMin = 30
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Telegraph.WhatsApp.GraphURL == "" {
		c.Telegraph.WhatsApp.GraphURL = "https://graph.facebook.com"
	}
	if c.Telegraph.WhatsApp.APIVersion == "" {
		c.Telegraph.WhatsApp.APIVersion = "v20.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is invalid", c.Timezone))
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	switch c.Agent.StateBackend {
	case "db", "redis":
	default:
		errs = append(errs, fmt.Sprintf("agent.state_backend %q must be db or redis", c.Agent.StateBackend))
	}
	if c.Agent.StateTTLMin < 0 {
		errs = append(errs, "agent.state_ttl_min must be positive")
	}
	switch c.Telegraph.Platform {
	case "":
	case "whatsapp":
		if c.Telegraph.WhatsApp.PhoneNumberID == "" {
			errs = append(errs, "telegraph.whatsapp.phone_number_id is required")
		}
		if c.Telegraph.WhatsApp.AccessToken == "" {
			errs = append(errs, "telegraph.whatsapp.access_token is required")
		}
	case "slack":
		if c.Telegraph.Slack.AppToken == "" || c.Telegraph.Slack.BotToken == "" {
			errs = append(errs, "telegraph.slack.app_token and bot_token are required")
		}
	case "discord":
		if c.Telegraph.Discord.BotToken == "" {
			errs = append(errs, "telegraph.discord.bot_token is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("telegraph.platform %q is not supported", c.Telegraph.Platform))
	}
	for _, ci := range []struct{ name, expr string }{
		{"checkins.morning", c.CheckIns.Morning},
		{"checkins.evening", c.CheckIns.Evening},
	} {
		if ci.expr == "" {
			continue
		}
		if _, err := cronParser.Parse(ci.expr); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid cron %q", ci.name, ci.expr))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
