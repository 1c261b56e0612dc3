// ABOUTME: Conversation turn orchestration
// ABOUTME: Streams a turn through the demuxer into the playback scheduler
package chatterbox

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/demux"
	"github.com/harperreed/chatterbox-go/pkg/transport"
)

// Conversation runs one turn at a time against a voice endpoint
type Conversation struct {
	config   Config
	demuxer  *demux.Demuxer
	recorder Recorder

	mu     sync.Mutex
	active *turn
	state  State
}

// turn is the state owned by one Send call
type turn struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	source transport.Source
}

// New creates a conversation, applying defaults
func New(config Config) (*Conversation, error) {
	if config.Opener == nil {
		return nil, fmt.Errorf("opener is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if config.Name == "" {
		config.Name = chat.DefaultName
	}
	if config.SenderName == "" {
		config.SenderName = chat.DefaultSenderName
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = chat.DefaultSystemPrompt
	}
	if config.History == nil {
		config.History = chat.NewMemoryStore(chat.System(config.SystemPrompt))
	}
	if config.Segments == nil {
		config.Segments = audio.NewMemoryStore()
	}

	dmx, err := demux.New(demux.Config{
		Layout:         config.Layout,
		MaxFieldLength: config.MaxFieldLength,
		Budget:         config.FeedBudget,
		Store:          config.Segments,
		Codec:          config.OutputFormat,
		Debug:          config.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create demuxer: %w", err)
	}

	recorder := config.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Conversation{
		config:   config,
		demuxer:  dmx,
		recorder: recorder,
	}, nil
}

// Send runs a full turn for the recorded input and returns once the
// response has finished playing. An active turn is cancelled first and
// waited for. Partial results are kept in the history on every outcome.
func (c *Conversation) Send(ctx context.Context, input []byte) (TurnResult, error) {
	turnCtx, cancel := context.WithCancel(ctx)
	t := c.begin(cancel)

	defer func() {
		cancel()
		c.mu.Lock()
		if c.active == t {
			c.active = nil
		}
		c.mu.Unlock()
		c.setState(StateIdle)
		close(t.done)
	}()

	return c.run(turnCtx, t, input)
}

// begin retires any active turn and installs a new one
func (c *Conversation) begin(cancel context.CancelFunc) *turn {
	for {
		c.mu.Lock()
		prev := c.active
		if prev == nil {
			t := &turn{id: uuid.New().String(), cancel: cancel, done: make(chan struct{})}
			c.active = t
			c.mu.Unlock()
			return t
		}
		c.mu.Unlock()

		if c.config.Debug {
			log.Printf("[debug] cancelling turn %s for a new request", prev.id)
		}
		prev.abort()
		<-prev.done
	}
}

// Cancel aborts the active turn without waiting for it to retire
func (c *Conversation) Cancel() {
	c.mu.Lock()
	t := c.active
	c.mu.Unlock()

	if t != nil {
		t.abort()
	}
}

// State returns the current activity
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the shared chat history
func (c *Conversation) History(ctx context.Context) ([]chat.Message, error) {
	return c.config.History.Load(ctx)
}

func (c *Conversation) setState(state State) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed && c.config.OnStateChange != nil {
		c.config.OnStateChange(state)
	}
}

func (c *Conversation) notifyError(err error) {
	if c.config.OnError != nil {
		c.config.OnError(err)
	}
}

func (t *turn) abort() {
	t.mu.Lock()
	cancel := t.cancel
	src := t.source
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// Releasing the reader unblocks a pending Read
	if src != nil {
		src.Close()
	}
}

func (t *turn) setSource(src transport.Source) {
	t.mu.Lock()
	t.source = src
	t.mu.Unlock()
}

// request builds the outbound body from the adapted history
func (c *Conversation) request(ctx context.Context, input []byte) ([]byte, error) {
	history, err := c.config.History.Load(ctx)
	if err != nil {
		return nil, err
	}

	req := &chat.Request{
		Chat:         chat.AdaptHistory(history, c.config.Name, c.config.SystemPrompt),
		ChatModel:    c.config.ChatModel,
		STTModel:     c.config.STTModel,
		TTSModel:     c.config.TTSModel,
		Voice:        c.config.Voice,
		SpeakerName:  c.config.SenderName,
		OutputFormat: c.config.OutputFormat,
	}
	req.SetAudio(input)

	if c.config.Debug {
		log.Printf("[debug] sending adapted chat history (%d messages)", len(req.Chat))
	}

	return req.Marshal()
}
