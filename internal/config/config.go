// ABOUTME: Client and server configuration
// ABOUTME: Defaults, YAML file, .env and CHATTERBOX_* environment overrides
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/demux"
	"github.com/harperreed/chatterbox-go/pkg/playback"
	"github.com/harperreed/chatterbox-go/pkg/transport"
	"github.com/harperreed/chatterbox-go/pkg/wire"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CHATTERBOX_"

// Config is the complete configuration shared by the client and the server
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	Chat     ChatConfig     `yaml:"chat"`
	Wire     WireConfig     `yaml:"wire"`
	Playback PlaybackConfig `yaml:"playback"`
	History  HistoryConfig  `yaml:"history"`
	Server   ServerConfig   `yaml:"server"`

	// MetricsAddr serves /metrics when set
	MetricsAddr string `yaml:"metrics_addr"`
	LogFile     string `yaml:"log_file"`
	Debug       bool   `yaml:"debug"`
}

// ClientConfig selects the voice endpoint
type ClientConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Transport   string `yaml:"transport"`
	Discover    bool   `yaml:"discover"`
	SegmentsDir string `yaml:"segments_dir"`
}

// ChatConfig holds the assistant's identity and model choices
type ChatConfig struct {
	Name         string `yaml:"name"`
	SenderName   string `yaml:"sender_name"`
	SystemPrompt string `yaml:"system_prompt"`
	ChatModel    string `yaml:"chat_model"`
	STTModel     string `yaml:"stt_model"`
	TTSModel     string `yaml:"tts_model"`
	Voice        string `yaml:"voice"`
	OutputFormat string `yaml:"output_format"`
}

// WireConfig controls stream decoding
type WireConfig struct {
	Layout         string        `yaml:"layout"`
	MaxFieldLength uint32        `yaml:"max_field_length"`
	FeedBudget     time.Duration `yaml:"feed_budget"`
}

// PlaybackConfig controls the audio output
type PlaybackConfig struct {
	Output       string        `yaml:"output"` // oto or null
	Volume       int           `yaml:"volume"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// HistoryConfig selects where the chat history lives
type HistoryConfig struct {
	Backend       string `yaml:"backend"` // memory or redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
}

// ServerConfig configures the reference backend
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	Backend   string `yaml:"backend"` // tone or openai
	Name      string `yaml:"name"`
	Advertise bool   `yaml:"advertise"`
	OpenAIKey string `yaml:"openai_api_key"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Endpoint:  "http://localhost:8000/voice",
			Transport: transport.KindHTTP,
		},
		Chat: ChatConfig{
			Name:         chat.DefaultName,
			SenderName:   chat.DefaultSenderName,
			SystemPrompt: chat.DefaultSystemPrompt,
			ChatModel:    "gpt-3.5-turbo",
			STTModel:     "whisper-1",
			TTSModel:     "tts-1",
			Voice:        "nova",
			OutputFormat: "mp3",
		},
		Wire: WireConfig{
			Layout:         wire.LayoutV1.Name,
			MaxFieldLength: demux.DefaultMaxFieldLength,
			FeedBudget:     demux.DefaultBudget,
		},
		Playback: PlaybackConfig{
			Output:       "oto",
			Volume:       100,
			PollInterval: playback.DefaultPollInterval,
		},
		History: HistoryConfig{
			Backend:  "memory",
			RedisKey: "chatterbox:history",
		},
		Server: ServerConfig{
			Addr:      ":8000",
			Backend:   "tone",
			Name:      "chatterbox",
			Advertise: true,
		},
		LogFile: "chatterbox.log",
	}
}

// Load builds a configuration from the defaults, the YAML file at path
// (skipped when empty), a .env file if present and the environment.
// Callers apply flags on top and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ENDPOINT":       &c.Client.Endpoint,
		"TRANSPORT":      &c.Client.Transport,
		"SEGMENTS_DIR":   &c.Client.SegmentsDir,
		"NAME":           &c.Chat.Name,
		"SENDER_NAME":    &c.Chat.SenderName,
		"SYSTEM_PROMPT":  &c.Chat.SystemPrompt,
		"CHAT_MODEL":     &c.Chat.ChatModel,
		"STT_MODEL":      &c.Chat.STTModel,
		"TTS_MODEL":      &c.Chat.TTSModel,
		"VOICE":          &c.Chat.Voice,
		"OUTPUT_FORMAT":  &c.Chat.OutputFormat,
		"LAYOUT":         &c.Wire.Layout,
		"OUTPUT":         &c.Playback.Output,
		"HISTORY":        &c.History.Backend,
		"REDIS_ADDR":     &c.History.RedisAddr,
		"REDIS_PASSWORD": &c.History.RedisPassword,
		"REDIS_KEY":      &c.History.RedisKey,
		"SERVER_ADDR":    &c.Server.Addr,
		"BACKEND":        &c.Server.Backend,
		"SERVER_NAME":    &c.Server.Name,
		"METRICS_ADDR":   &c.MetricsAddr,
		"LOG_FILE":       &c.LogFile,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("OPENAI_API_KEY"); ok {
		c.Server.OpenAIKey = v
	}

	var err error
	parse := func(key string, fn func(string) error) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || err != nil {
			return
		}
		if perr := fn(v); perr != nil {
			err = fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, v, perr)
		}
	}

	parse("MAX_FIELD_LENGTH", func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		c.Wire.MaxFieldLength = uint32(n)
		return err
	})
	parse("FEED_BUDGET", func(v string) (err error) {
		c.Wire.FeedBudget, err = time.ParseDuration(v)
		return err
	})
	parse("POLL_INTERVAL", func(v string) (err error) {
		c.Playback.PollInterval, err = time.ParseDuration(v)
		return err
	})
	parse("VOLUME", func(v string) (err error) {
		c.Playback.Volume, err = strconv.Atoi(v)
		return err
	})
	parse("REDIS_DB", func(v string) (err error) {
		c.History.RedisDB, err = strconv.Atoi(v)
		return err
	})
	parse("DISCOVER", func(v string) (err error) {
		c.Client.Discover, err = strconv.ParseBool(v)
		return err
	})
	parse("ADVERTISE", func(v string) (err error) {
		c.Server.Advertise, err = strconv.ParseBool(v)
		return err
	})
	parse("DEBUG", func(v string) (err error) {
		c.Debug, err = strconv.ParseBool(v)
		return err
	})

	return err
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := c.Wire.Validate(); err != nil {
		return fmt.Errorf("wire config: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	return nil
}

// Validate validates the client configuration
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" && !c.Discover {
		return fmt.Errorf("endpoint cannot be empty without discovery")
	}
	switch c.Transport {
	case transport.KindHTTP, transport.KindWebSocket, "websocket":
	default:
		return fmt.Errorf("transport must be http or ws, got %q", c.Transport)
	}
	return nil
}

// Validate validates wire decoding limits
func (w *WireConfig) Validate() error {
	if _, err := wire.LayoutByName(w.Layout); err != nil {
		return err
	}
	if w.MaxFieldLength == 0 {
		return fmt.Errorf("max_field_length must be positive")
	}
	if w.FeedBudget <= 0 {
		return fmt.Errorf("feed_budget must be positive, got %v", w.FeedBudget)
	}
	return nil
}

// Validate validates playback settings
func (p *PlaybackConfig) Validate() error {
	if p.Output != "oto" && p.Output != "null" {
		return fmt.Errorf("output must be oto or null, got %q", p.Output)
	}
	if p.Volume < 0 || p.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", p.Volume)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", p.PollInterval)
	}
	return nil
}

// Validate validates the history backend
func (h *HistoryConfig) Validate() error {
	switch h.Backend {
	case "memory":
	case "redis":
		if h.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
		if h.RedisKey == "" {
			return fmt.Errorf("redis_key cannot be empty")
		}
	default:
		return fmt.Errorf("backend must be memory or redis, got %q", h.Backend)
	}
	return nil
}

// Validate validates the reference backend settings
func (s *ServerConfig) Validate() error {
	switch s.Backend {
	case "tone", "openai":
	default:
		return fmt.Errorf("backend must be tone or openai, got %q", s.Backend)
	}
	return nil
}

// RequireOpenAI reports a missing key when the openai backend is selected
func (s *ServerConfig) RequireOpenAI() error {
	if s.Backend == "openai" && s.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
	}
	return nil
}

// WireLayout resolves the configured layout name
func (w *WireConfig) WireLayout() wire.Layout {
	layout, err := wire.LayoutByName(w.Layout)
	if err != nil {
		return wire.LayoutV1
	}
	return layout
}
