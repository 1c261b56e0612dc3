// ABOUTME: Conversation configuration, state and result types
// ABOUTME: Defines callbacks, the metrics recorder contract and turn outcomes
package chatterbox

import (
	"errors"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/playback"
	"github.com/harperreed/chatterbox-go/pkg/transport"
	"github.com/harperreed/chatterbox-go/pkg/wire"
)

// ErrTurnCancelled is returned by Send when the turn was aborted by Cancel,
// a newer Send or the caller's context
var ErrTurnCancelled = errors.New("turn cancelled")

// State is the conversation's activity
type State int

const (
	StateIdle State = iota
	StateSending
	StateResponding
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateResponding:
		return "responding"
	case StateSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}

// Outcome labels for finished turns
const (
	OutcomeComplete  = "complete"
	OutcomeCancelled = "cancelled"
	OutcomeProtocol  = "protocol_error"
	OutcomeTransport = "transport_error"
	OutcomeFailed    = "failed"
)

// Recorder receives turn measurements
type Recorder interface {
	TurnStarted()
	TurnFinished(outcome string, d time.Duration)
	BytesReceived(n int)
	EventDecoded(kind string)
	FirstAudio(d time.Duration)
	SegmentPlayed()
	SegmentFailed()
}

type nopRecorder struct{}

func (nopRecorder) TurnStarted()                       {}
func (nopRecorder) TurnFinished(string, time.Duration) {}
func (nopRecorder) BytesReceived(int)                  {}
func (nopRecorder) EventDecoded(string)                {}
func (nopRecorder) FirstAudio(time.Duration)           {}
func (nopRecorder) SegmentPlayed()                     {}
func (nopRecorder) SegmentFailed()                     {}

// Config holds conversation configuration
type Config struct {
	// Opener sends requests to the voice endpoint (required)
	Opener transport.Opener

	// Sink plays audio segments (required)
	Sink playback.Sink

	// History stores the shared chat (default: in-memory)
	History chat.Store

	// Segments allocates segment handles (default: in-memory)
	Segments audio.SegmentStore

	// Name is this assistant's name in the shared history (default: "assistant")
	Name string

	// SenderName labels the local user's messages (default: "user")
	SenderName string

	SystemPrompt string
	ChatModel    string
	STTModel     string
	TTSModel     string
	Voice        string
	OutputFormat string

	// Wire decoding
	Layout         wire.Layout
	MaxFieldLength uint32
	FeedBudget     time.Duration

	// PollInterval is the playback scheduler's idle poll (default 50ms)
	PollInterval time.Duration

	Debug bool

	// Recorder receives metrics (optional)
	Recorder Recorder

	// Callbacks run on the goroutine calling Send, except the playback
	// callbacks which run on the scheduler goroutine.
	OnUserMessage      func(text string)
	OnAssistantDelta   func(text string)
	OnAssistantMessage func(text string)
	OnAudioSegment     func(seg *audio.Segment)
	OnPlaybackStart    func(seg *audio.Segment)
	OnPlaybackComplete func()
	OnPlaybackError    func(err error)
	OnError            func(err error)
	OnStateChange      func(state State)
}

// TurnResult summarizes a finished turn
type TurnResult struct {
	ID               string
	UserMessage      string
	AssistantMessage string
	Segments         int
	PlaybackErrors   int
	Outcome          string
	Duration         time.Duration
}
