// ABOUTME: Stream demuxer state machine
// ABOUTME: Walks the six-phase field cycle across arbitrarily split buffers
package demux

import (
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/wire"
)

const (
	// DefaultMaxFieldLength bounds any single field (64 MiB)
	DefaultMaxFieldLength = 64 << 20

	// DefaultBudget is the wall-clock work budget of one Feed call
	DefaultBudget = time.Second

	// carry buffers start at most this large and grow as bytes arrive
	initialCarryCap = 1 << 20
)

// Config holds demuxer configuration
type Config struct {
	// Layout gives the width of each length prefix (default: wire.LayoutV1)
	Layout wire.Layout

	// MaxFieldLength rejects larger fields as protocol violations
	MaxFieldLength uint32

	// Budget bounds the time spent in one Feed call
	Budget time.Duration

	// Store allocates playable handles for audio segments (default: memory)
	Store audio.SegmentStore

	// Codec is the requested audio format, used when a payload can't be sniffed
	Codec string

	// Debug logs every completed field
	Debug bool

	// Now overrides the clock used for the Feed budget
	Now func() time.Time
}

// Demuxer decodes one turn at a time. It is not safe for concurrent use.
type Demuxer struct {
	config Config

	phase    wire.Phase
	carry    []byte
	fieldLen uint32

	userMessage string
	hasUser     bool
	assistant   strings.Builder

	err   error
	ended bool
}

// New creates a demuxer, applying defaults
func New(config Config) (*Demuxer, error) {
	if config.Layout == (wire.Layout{}) {
		config.Layout = wire.LayoutV1
	}
	if err := config.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	if config.MaxFieldLength == 0 {
		config.MaxFieldLength = DefaultMaxFieldLength
	}
	if config.Budget <= 0 {
		config.Budget = DefaultBudget
	}
	if config.Store == nil {
		config.Store = audio.NewMemoryStore()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Demuxer{config: config}, nil
}

// Feed consumes buf and returns the events completed by it, plus the
// number of bytes consumed. Fewer than len(buf) bytes are consumed only
// when the work budget runs out; the caller feeds the rest afterwards.
// After a protocol violation every call returns the same error.
func (d *Demuxer) Feed(buf []byte) ([]Event, int, error) {
	if d.err != nil {
		return nil, 0, d.err
	}
	if d.ended {
		return nil, 0, ErrEnded
	}

	var events []Event
	start := d.config.Now()
	off := 0

	for iter := 0; ; iter++ {
		need := d.required() - len(d.carry)

		// A zero-length body still completes with no bytes left
		if need > 0 && off >= len(buf) {
			break
		}
		if need > 0 && iter > 0 && d.config.Now().Sub(start) >= d.config.Budget {
			if d.config.Debug {
				log.Printf("[debug] feed budget exhausted in %s, %d bytes left", d.phase, len(buf)-off)
			}
			break
		}

		take := min(need, len(buf)-off)
		if take > 0 {
			if d.carry == nil {
				d.carry = make([]byte, 0, min(d.required(), initialCarryCap))
			}
			d.carry = append(d.carry, buf[off:off+take]...)
			off += take
		}

		if len(d.carry) < d.required() {
			break
		}

		ev, err := d.complete()
		if err != nil {
			d.err = err
			d.carry = nil
			return events, off, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}

	return events, off, nil
}

// End finalizes the turn and returns its TurnComplete event. The event is
// returned even when the stream stopped inside a field; in that case the
// partial field is dropped and a ProtocolError is returned as well.
func (d *Demuxer) End() (Event, error) {
	done := Event{Kind: EventTurnComplete, Text: d.assistant.String()}

	if d.err != nil {
		return done, d.err
	}
	d.ended = true

	if len(d.carry) > 0 || !d.phase.IsLength() {
		err := &ProtocolError{
			Kind:    ErrTruncatedField,
			Phase:   d.phase,
			Length:  uint32(d.required()),
			Carried: len(d.carry),
		}
		d.carry = nil
		return done, err
	}

	return done, nil
}

// Reset returns the demuxer to its initial state for a new turn
func (d *Demuxer) Reset() {
	d.phase = wire.PhaseQueryLength
	d.carry = nil
	d.fieldLen = 0
	d.userMessage = ""
	d.hasUser = false
	d.assistant.Reset()
	d.err = nil
	d.ended = false
}

// Phase returns the phase awaiting bytes
func (d *Demuxer) Phase() wire.Phase {
	return d.phase
}

// Carried returns the number of bytes held for the current field
func (d *Demuxer) Carried() int {
	return len(d.carry)
}

// Required returns the size of the field the current phase expects
func (d *Demuxer) Required() int {
	return d.required()
}

// UserMessage returns the last decoded query text
func (d *Demuxer) UserMessage() (string, bool) {
	return d.userMessage, d.hasUser
}

// AssistantText returns the response text decoded so far
func (d *Demuxer) AssistantText() string {
	return d.assistant.String()
}

// Err returns the protocol violation that aborted the turn, if any
func (d *Demuxer) Err() error {
	return d.err
}

func (d *Demuxer) required() int {
	if d.phase.IsLength() {
		return d.config.Layout.Width(d.phase)
	}
	return int(d.fieldLen)
}

// complete interprets the finished field in carry and advances the phase
func (d *Demuxer) complete() (*Event, error) {
	field := d.carry
	phase := d.phase
	d.carry = nil
	d.phase = phase.Next()

	if d.config.Debug {
		log.Printf("[debug] phase %s complete (%d bytes)", phase, len(field))
	}

	switch phase {
	case wire.PhaseQueryLength, wire.PhaseResponseTextLength, wire.PhaseResponseAudioLength:
		n, err := wire.DecodeLength(field)
		if err != nil {
			return nil, err
		}
		if n > d.config.MaxFieldLength {
			return nil, &ProtocolError{
				Kind:   ErrFieldTooLarge,
				Phase:  d.phase,
				Length: n,
				Max:    d.config.MaxFieldLength,
			}
		}
		d.fieldLen = n
		return nil, nil

	case wire.PhaseQuery:
		text := decodeText(field)
		d.userMessage = text
		d.hasUser = true
		return &Event{Kind: EventUserMessage, Text: text}, nil

	case wire.PhaseResponseText:
		text := decodeText(field)
		d.assistant.WriteString(text)
		return &Event{Kind: EventAssistantTextDelta, Text: text}, nil

	case wire.PhaseResponseAudio:
		if field == nil {
			field = []byte{}
		}
		seg, err := d.config.Store.Put(field, d.config.Codec)
		if err != nil {
			return nil, fmt.Errorf("failed to store audio segment: %w", err)
		}
		return &Event{Kind: EventAudioSegmentReady, Segment: seg}, nil
	}

	return nil, fmt.Errorf("invalid phase: %s", phase)
}

// decodeText decodes UTF-8, replacing each invalid byte with U+FFFD
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}
