// ABOUTME: Tests for configuration loading
// ABOUTME: Tests defaults, YAML files, environment overrides and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/wire"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if cfg.Client.Endpoint != "http://localhost:8000/voice" {
		t.Errorf("unexpected endpoint: %s", cfg.Client.Endpoint)
	}
	if cfg.Chat.STTModel != "whisper-1" || cfg.Chat.ChatModel != "gpt-3.5-turbo" || cfg.Chat.TTSModel != "tts-1" {
		t.Errorf("unexpected models: %+v", cfg.Chat)
	}
	if cfg.Chat.Voice != "nova" || cfg.Chat.SystemPrompt != chat.DefaultSystemPrompt {
		t.Errorf("unexpected voice settings: %+v", cfg.Chat)
	}
	if cfg.Wire.MaxFieldLength != 64<<20 || cfg.Wire.FeedBudget != time.Second {
		t.Errorf("unexpected wire limits: %+v", cfg.Wire)
	}
	if cfg.Wire.WireLayout() != wire.LayoutV1 {
		t.Errorf("expected v1 layout")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatterbox.yaml")
	content := `
client:
  endpoint: http://voice.local:9000/voice
  transport: ws
chat:
  name: robot
  voice: alloy
wire:
  layout: compact
  feed_budget: 250ms
history:
  backend: redis
  redis_addr: localhost:6379
debug: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}

	if cfg.Client.Endpoint != "http://voice.local:9000/voice" || cfg.Client.Transport != "ws" {
		t.Errorf("unexpected client config: %+v", cfg.Client)
	}
	if cfg.Chat.Name != "robot" || cfg.Chat.Voice != "alloy" {
		t.Errorf("unexpected chat config: %+v", cfg.Chat)
	}
	// Unset fields keep their defaults
	if cfg.Chat.TTSModel != "tts-1" {
		t.Errorf("expected default tts model, got %s", cfg.Chat.TTSModel)
	}
	if cfg.Wire.WireLayout() != wire.LayoutCompact || cfg.Wire.FeedBudget != 250*time.Millisecond {
		t.Errorf("unexpected wire config: %+v", cfg.Wire)
	}
	if cfg.History.Backend != "redis" || !cfg.Debug {
		t.Errorf("unexpected history/debug: %+v %v", cfg.History, cfg.Debug)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("client: [unterminated"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CHATTERBOX_ENDPOINT":         "https://example.com/voice",
		"CHATTERBOX_NAME":             "bot",
		"CHATTERBOX_MAX_FIELD_LENGTH": "1024",
		"CHATTERBOX_FEED_BUDGET":      "20ms",
		"CHATTERBOX_DEBUG":            "true",
		"CHATTERBOX_VOLUME":           "40",
		"OPENAI_API_KEY":              "sk-test",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Client.Endpoint != "https://example.com/voice" || cfg.Chat.Name != "bot" {
		t.Errorf("string overrides not applied: %+v %+v", cfg.Client, cfg.Chat)
	}
	if cfg.Wire.MaxFieldLength != 1024 || cfg.Wire.FeedBudget != 20*time.Millisecond {
		t.Errorf("numeric overrides not applied: %+v", cfg.Wire)
	}
	if !cfg.Debug || cfg.Playback.Volume != 40 {
		t.Errorf("expected debug and volume 40, got %v %d", cfg.Debug, cfg.Playback.Volume)
	}
	if cfg.Server.OpenAIKey != "sk-test" {
		t.Errorf("expected OpenAI key from environment")
	}
}

func TestApplyEnvInvalidValue(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "CHATTERBOX_FEED_BUDGET" {
			return "soon", true
		}
		return "", false
	}

	err := Default().ApplyEnv(lookup)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "CHATTERBOX_FEED_BUDGET") {
		t.Errorf("expected variable name in error, got %v", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CHATTERBOX_VOICE", "shimmer")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.Voice != "shimmer" {
		t.Errorf("expected voice from environment, got %s", cfg.Chat.Voice)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown layout", func(c *Config) { c.Wire.Layout = "v9" }, "unknown wire layout"},
		{"unknown transport", func(c *Config) { c.Client.Transport = "carrier-pigeon" }, "transport"},
		{"zero field limit", func(c *Config) { c.Wire.MaxFieldLength = 0 }, "max_field_length"},
		{"negative budget", func(c *Config) { c.Wire.FeedBudget = -time.Second }, "feed_budget"},
		{"zero poll", func(c *Config) { c.Playback.PollInterval = 0 }, "poll_interval"},
		{"volume", func(c *Config) { c.Playback.Volume = 101 }, "volume"},
		{"output", func(c *Config) { c.Playback.Output = "speaker" }, "output"},
		{"redis without addr", func(c *Config) { c.History.Backend = "redis" }, "redis_addr"},
		{"unknown history", func(c *Config) { c.History.Backend = "disk" }, "memory or redis"},
		{"unknown backend", func(c *Config) { c.Server.Backend = "llama" }, "tone or openai"},
		{"no endpoint", func(c *Config) { c.Client.Endpoint = "" }, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDiscoveryAllowsEmptyEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Client.Endpoint = ""
	cfg.Client.Discover = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected discovery without endpoint to be valid: %v", err)
	}
}

func TestRequireOpenAI(t *testing.T) {
	s := ServerConfig{Backend: "openai"}
	if err := s.RequireOpenAI(); err == nil {
		t.Error("expected missing key error")
	}
	s.OpenAIKey = "sk"
	if err := s.RequireOpenAI(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&ServerConfig{Backend: "tone"}).RequireOpenAI(); err != nil {
		t.Errorf("tone backend needs no key: %v", err)
	}
}
