// ABOUTME: Main client application orchestration
// ABOUTME: Coordinates all components (conversation, audio, history, UI)
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/chatterbox-go/internal/config"
	"github.com/harperreed/chatterbox-go/internal/discovery"
	"github.com/harperreed/chatterbox-go/internal/metrics"
	"github.com/harperreed/chatterbox-go/internal/ui"
	"github.com/harperreed/chatterbox-go/internal/version"
	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/audio/output"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/chatterbox"
	"github.com/harperreed/chatterbox-go/pkg/transport"
	"github.com/redis/go-redis/v9"
)

const discoveryTimeout = 10 * time.Second

// ErrNoInput is returned when a send is requested without input files
var ErrNoInput = errors.New("no input files")

// Config holds client configuration
type Config struct {
	Settings *config.Config

	// Inputs are recorded audio files, sent one per turn
	Inputs []string

	UseTUI bool

	// Output overrides the configured audio output
	Output output.Output
}

// Client represents the main client application
type Client struct {
	config   Config
	settings *config.Config

	endpoint     string
	conversation *chatterbox.Conversation
	out          output.Output
	sink         *output.SegmentSink
	history      chat.Store
	redis        *redis.Client
	metrics      *metrics.Metrics
	metricsSrv   *http.Server

	inputs [][]byte
	next   atomic.Int64

	segments atomic.Int64
	played   atomic.Int64
	failed   atomic.Int64

	controls *ui.Controls
	tuiProg  *tea.Program

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new client
func New(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}

	return &Client{
		config:   cfg,
		settings: cfg.Settings,
		metrics:  metrics.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start builds the components and runs until the inputs are spent (no
// TUI) or the user quits
func (c *Client) Start() error {
	if err := c.setup(); err != nil {
		return err
	}

	if !c.config.UseTUI {
		return c.sendAll()
	}

	c.controls = ui.NewControls()
	c.tuiProg = ui.Run(c.controls, c.settings.Playback.Volume)
	go func() {
		if _, err := c.tuiProg.Run(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		c.cancel()
	}()

	c.updateTUI(ui.StatusMsg{
		Endpoint:  c.endpoint,
		Transport: c.settings.Client.Transport,
		State:     chatterbox.StateIdle.String(),
	})

	return c.handleControls()
}

// setup reads the inputs and wires the conversation
func (c *Client) setup() error {
	for _, path := range c.config.Inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		c.inputs = append(c.inputs, data)
	}

	endpoint, err := c.resolveEndpoint()
	if err != nil {
		return err
	}
	c.endpoint = endpoint

	opener, err := transport.New(c.settings.Client.Transport, endpoint, &http.Client{
		Transport: &userAgent{base: http.DefaultTransport},
	})
	if err != nil {
		return err
	}

	if err := c.openHistory(); err != nil {
		return err
	}

	var segments audio.SegmentStore = audio.NewMemoryStore()
	if dir := c.settings.Client.SegmentsDir; dir != "" {
		store, err := audio.NewFileStore(dir)
		if err != nil {
			return fmt.Errorf("failed to create segment store: %w", err)
		}
		segments = store
	}

	c.out = c.config.Output
	if c.out == nil {
		c.out = newOutput(c.settings.Playback.Output)
	}
	c.sink, err = output.NewSegmentSink(c.out, output.SinkConfig{})
	if err != nil {
		return err
	}
	c.setVolume(c.settings.Playback.Volume, false)

	if addr := c.settings.MetricsAddr; addr != "" {
		c.serveMetrics(addr)
	}

	chatCfg := c.settings.Chat
	c.conversation, err = chatterbox.New(chatterbox.Config{
		Opener:         opener,
		Sink:           c.sink,
		History:        c.history,
		Segments:       segments,
		Name:           chatCfg.Name,
		SenderName:     chatCfg.SenderName,
		SystemPrompt:   chatCfg.SystemPrompt,
		ChatModel:      chatCfg.ChatModel,
		STTModel:       chatCfg.STTModel,
		TTSModel:       chatCfg.TTSModel,
		Voice:          chatCfg.Voice,
		OutputFormat:   chatCfg.OutputFormat,
		Layout:         c.settings.Wire.WireLayout(),
		MaxFieldLength: c.settings.Wire.MaxFieldLength,
		FeedBudget:     c.settings.Wire.FeedBudget,
		PollInterval:   c.settings.Playback.PollInterval,
		Debug:          c.settings.Debug,
		Recorder:       c.metrics,

		OnUserMessage: func(text string) {
			log.Printf("You: %s", text)
			c.updateTUI(ui.UserMsg{Text: text})
		},
		OnAssistantDelta: func(text string) {
			c.updateTUI(ui.DeltaMsg{Text: text})
		},
		OnAssistantMessage: func(text string) {
			log.Printf("%s: %s", chatCfg.Name, text)
			c.updateTUI(ui.AssistantMsg{Name: chatCfg.Name, Text: text})
		},
		OnAudioSegment: func(seg *audio.Segment) {
			if len(seg.Data) == 0 {
				return
			}
			c.updateTUI(ui.StatusMsg{Segments: int(c.segments.Add(1))})
		},
		OnPlaybackStart: func(seg *audio.Segment) {
			c.updateTUI(ui.StatusMsg{Played: int(c.played.Add(1))})
		},
		OnPlaybackError: func(err error) {
			log.Printf("Playback error: %v", err)
			c.updateTUI(ui.StatusMsg{Failed: int(c.failed.Add(1))})
		},
		OnError: func(err error) {
			c.updateTUI(ui.ErrorMsg{Err: err})
		},
		OnStateChange: func(state chatterbox.State) {
			c.updateTUI(ui.StatusMsg{State: state.String()})
		},
	})
	return err
}

// resolveEndpoint returns the configured endpoint or browses for one
func (c *Client) resolveEndpoint() (string, error) {
	if c.settings.Client.Endpoint != "" {
		return c.settings.Client.Endpoint, nil
	}
	if !c.settings.Client.Discover {
		return "", fmt.Errorf("no endpoint configured")
	}

	log.Printf("Starting server discovery...")
	ctx, cancel := context.WithTimeout(c.ctx, discoveryTimeout)
	defer cancel()

	server, err := discovery.Discover(ctx)
	if err != nil {
		return "", err
	}
	log.Printf("Discovered %s at %s", server.Name, server.Endpoint())
	return server.Endpoint(), nil
}

// openHistory connects the configured history backend
func (c *Client) openHistory() error {
	h := c.settings.History
	if h.Backend != "redis" {
		c.history = chat.NewMemoryStore(chat.System(c.settings.Chat.SystemPrompt))
		return nil
	}

	c.redis = redis.NewClient(&redis.Options{
		Addr:     h.RedisAddr,
		Password: h.RedisPassword,
		DB:       h.RedisDB,
	})

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", h.RedisAddr, err)
	}

	log.Printf("Using redis history %s at %s", h.RedisKey, h.RedisAddr)
	c.history = chat.NewRedisStore(c.redis, h.RedisKey)
	return nil
}

// serveMetrics exposes the prometheus registry
func (c *Client) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.metrics.Handler())
	c.metricsSrv = &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("Serving metrics on %s/metrics", addr)
		if err := c.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
}

// sendAll runs one turn per input in order
func (c *Client) sendAll() error {
	if len(c.inputs) == 0 {
		return ErrNoInput
	}

	var errs []error
	for range c.inputs {
		if _, err := c.SendNext(c.ctx); err != nil {
			if errors.Is(err, chatterbox.ErrTurnCancelled) && c.ctx.Err() != nil {
				break
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendNext sends the next input, wrapping around at the end
func (c *Client) SendNext(ctx context.Context) (chatterbox.TurnResult, error) {
	if len(c.inputs) == 0 {
		return chatterbox.TurnResult{}, ErrNoInput
	}
	i := int(c.next.Add(1)-1) % len(c.inputs)

	result, err := c.conversation.Send(ctx, c.inputs[i])
	log.Printf("Turn %s: outcome=%s segments=%d playback_errors=%d duration=%v",
		result.ID, result.Outcome, result.Segments, result.PlaybackErrors, result.Duration)
	if err != nil {
		log.Printf("Turn failed: %v", err)
	}
	return result, err
}

// History returns the shared chat
func (c *Client) History(ctx context.Context) ([]chat.Message, error) {
	return c.conversation.History(ctx)
}

// handleControls processes TUI actions until quit
func (c *Client) handleControls() error {
	for {
		select {
		case action := <-c.controls.Actions:
			switch action {
			case ui.ActionSend:
				go func() {
					if _, err := c.SendNext(c.ctx); errors.Is(err, ErrNoInput) {
						c.updateTUI(ui.ErrorMsg{Err: err})
					}
				}()
			case ui.ActionCancel:
				c.conversation.Cancel()
			}

		case change := <-c.controls.Volume:
			c.setVolume(change.Volume, change.Muted)

		case <-c.controls.Quit:
			return nil

		case <-c.ctx.Done():
			return nil
		}
	}
}

func (c *Client) setVolume(volume int, muted bool) {
	vc, ok := c.out.(output.VolumeControl)
	if !ok {
		return
	}
	vc.SetVolume(volume)
	vc.SetMuted(muted)
}

// updateTUI forwards a message when the TUI is running
func (c *Client) updateTUI(msg tea.Msg) {
	if c.tuiProg != nil {
		c.tuiProg.Send(msg)
	}
}

// Stop stops the client
func (c *Client) Stop() {
	c.cancel()

	if c.conversation != nil {
		c.conversation.Cancel()
	}

	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			log.Printf("Failed to close audio output: %v", err)
		}
	}

	if c.redis != nil {
		c.redis.Close()
	}

	if c.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c.metricsSrv.Shutdown(ctx)
	}

	if c.tuiProg != nil {
		c.tuiProg.Quit()
	}
}

func newOutput(kind string) output.Output {
	if kind == "null" {
		return output.NewNull(true)
	}
	return output.NewOto()
}

// userAgent tags outbound requests with the client version
type userAgent struct {
	base http.RoundTripper
}

func (u *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return u.base.RoundTrip(req)
}
