package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
timezone: Europe/Paris

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: agent
  password: secret
  name: productif_prod

backend:
  base_url: https://app.productif.io/api
  timeout_sec: 20

llm:
  api_key: sk-test
  model: gpt-4o
  classify: true

agent:
  state_backend: redis
  state_ttl_min: 45

redis:
  addr: redis:6379
  db: 2

telegraph:
  platform: whatsapp
  whatsapp:
    phone_number_id: "1234567890"
    access_token: EAAG-token
    verify_token: hello
    app_secret: shh

server:
  port: 9090

checkins:
  morning: "0 8 * * 1-5"
  evening: "30 20 * * *"
`

const minimalYAML = `
backend:
  base_url: http://localhost:3000/api
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database host:port = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "productif_prod" {
		t.Errorf("Database.Name = %q, want productif_prod", cfg.Database.Name)
	}
	if cfg.Backend.BaseURL != "https://app.productif.io/api" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutSec != 20 {
		t.Errorf("Backend.TimeoutSec = %d, want 20", cfg.Backend.TimeoutSec)
	}
	if cfg.LLM.Model != "gpt-4o" || !cfg.LLM.Classify {
		t.Errorf("LLM = %+v, want model gpt-4o with classify", cfg.LLM)
	}
	if cfg.Agent.StateBackend != "redis" {
		t.Errorf("Agent.StateBackend = %q, want redis", cfg.Agent.StateBackend)
	}
	if cfg.StateTTL() != 45*time.Minute {
		t.Errorf("StateTTL() = %v, want 45m", cfg.StateTTL())
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Telegraph.Platform != "whatsapp" {
		t.Errorf("Telegraph.Platform = %q, want whatsapp", cfg.Telegraph.Platform)
	}
	if cfg.Telegraph.WhatsApp.PhoneNumberID != "1234567890" {
		t.Errorf("WhatsApp.PhoneNumberID = %q", cfg.Telegraph.WhatsApp.PhoneNumberID)
	}
	if cfg.Telegraph.WhatsApp.AppSecret != "shh" {
		t.Errorf("WhatsApp.AppSecret = %q, want shh", cfg.Telegraph.WhatsApp.AppSecret)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.CheckIns.Evening != "30 20 * * *" {
		t.Errorf("CheckIns.Evening = %q", cfg.CheckIns.Evening)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timezone != "Europe/Paris" {
		t.Errorf("Timezone = %q, want Europe/Paris (default)", cfg.Timezone)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "productif.db" {
		t.Errorf("Database.Path = %q, want productif.db (default)", cfg.Database.Path)
	}
	if cfg.Backend.TimeoutSec != 15 {
		t.Errorf("Backend.TimeoutSec = %d, want 15 (default)", cfg.Backend.TimeoutSec)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want gpt-4o-mini (default)", cfg.LLM.Model)
	}
	if cfg.Agent.StateBackend != "db" {
		t.Errorf("Agent.StateBackend = %q, want db (default)", cfg.Agent.StateBackend)
	}
	if cfg.StateTTL() != 30*time.Minute {
		t.Errorf("StateTTL() = %v, want 30m (default)", cfg.StateTTL())
	}
	if cfg.Telegraph.WhatsApp.APIVersion != "v20.0" {
		t.Errorf("WhatsApp.APIVersion = %q, want v20.0 (default)", cfg.Telegraph.WhatsApp.APIVersion)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + "database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database host:port = %s:%d, want 127.0.0.1:3306", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "productif_agent" {
		t.Errorf("Database.Name = %q, want productif_agent", cfg.Database.Name)
	}
}

func TestLocation(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Location().String(); got != "Europe/Paris" {
		t.Errorf("Location() = %q, want Europe/Paris", got)
	}
}

func TestParse_MissingBaseURL(t *testing.T) {
	_, err := Parse([]byte("timezone: UTC\n"))
	if err == nil {
		t.Fatal("expected error for missing backend.base_url")
	}
	if !strings.Contains(err.Error(), "backend.base_url is required") {
		t.Errorf("error = %q, want to mention backend.base_url", err.Error())
	}
}

func TestParse_InvalidTimezone(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "timezone: Mars/Olympus\n"))
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
	if !strings.Contains(err.Error(), "timezone") {
		t.Errorf("error = %q, want to mention timezone", err.Error())
	}
}

func TestParse_UnsupportedPlatform(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "telegraph:\n  platform: telegram\n"))
	if err == nil {
		t.Fatal("expected error for unsupported platform")
	}
	if !strings.Contains(err.Error(), `telegraph.platform "telegram"`) {
		t.Errorf("error = %q", err.Error())
	}
}

func TestParse_WhatsAppMissingCredentials(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "telegraph:\n  platform: whatsapp\n"))
	if err == nil {
		t.Fatal("expected error for missing whatsapp credentials")
	}
	msg := err.Error()
	if !strings.Contains(msg, "phone_number_id") || !strings.Contains(msg, "access_token") {
		t.Errorf("error = %q, want both whatsapp fields reported", msg)
	}
}

func TestParse_SlackMissingTokens(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "telegraph:\n  platform: slack\n  slack:\n    bot_token: xoxb\n"))
	if err == nil {
		t.Fatal("expected error for missing slack app token")
	}
}

func TestParse_InvalidCron(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "checkins:\n  morning: \"every morning\"\n"))
	if err == nil {
		t.Fatal("expected error for invalid cron")
	}
	if !strings.Contains(err.Error(), "checkins.morning") {
		t.Errorf("error = %q, want to mention checkins.morning", err.Error())
	}
}

func TestParse_InvalidStateBackend(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "agent:\n  state_backend: memcached\n"))
	if err == nil {
		t.Fatal("expected error for invalid state backend")
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: postgres\ntelegraph:\n  platform: discord\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"backend.base_url", "database.driver", "discord.bot_token"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error = %q, want to contain %q", msg, want)
		}
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "productif.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:3000/api" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("PRODUCTIF_TEST_OPENAI_KEY", "sk-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "productif.yaml")
	body := minimalYAML + "llm:\n  api_key: ${PRODUCTIF_TEST_OPENAI_KEY}\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("LLM.APIKey = %q, want sk-from-env", cfg.LLM.APIKey)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/productif.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}
