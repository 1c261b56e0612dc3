// ABOUTME: Demuxer event and error types
// ABOUTME: Defines turn events and protocol violation errors
package demux

import (
	"errors"
	"fmt"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/wire"
)

// EventKind identifies a decoded turn event
type EventKind int

const (
	EventUserMessage EventKind = iota + 1
	EventAssistantTextDelta
	EventAudioSegmentReady
	EventTurnComplete
)

func (k EventKind) String() string {
	switch k {
	case EventUserMessage:
		return "UserMessage"
	case EventAssistantTextDelta:
		return "AssistantTextDelta"
	case EventAudioSegmentReady:
		return "AudioSegmentReady"
	case EventTurnComplete:
		return "TurnComplete"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted when a field completes, or when the turn ends.
// Text carries the user message, the text delta or the full assistant
// message; Segment is set for EventAudioSegmentReady.
type Event struct {
	Kind    EventKind
	Text    string
	Segment *audio.Segment
}

var (
	// ErrFieldTooLarge is reported when a length prefix exceeds the configured maximum
	ErrFieldTooLarge = errors.New("field length exceeds maximum")

	// ErrTruncatedField is reported when the stream ends inside a field
	ErrTruncatedField = errors.New("stream ended mid-field")

	// ErrEnded is returned by Feed after End until Reset is called
	ErrEnded = errors.New("turn already ended")
)

// ProtocolError describes a wire protocol violation. It wraps one of the
// Err* sentinels, so errors.Is(err, ErrFieldTooLarge) works.
type ProtocolError struct {
	Kind    error
	Phase   wire.Phase
	Length  uint32
	Max     uint32
	Carried int
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case ErrFieldTooLarge:
		return fmt.Sprintf("protocol violation: %s length %d exceeds maximum %d", e.Phase, e.Length, e.Max)
	case ErrTruncatedField:
		return fmt.Sprintf("protocol violation: stream ended in %s with %d of %d bytes", e.Phase, e.Carried, e.Length)
	default:
		return fmt.Sprintf("protocol violation in %s: %v", e.Phase, e.Kind)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Kind
}
