// ABOUTME: Field cycle and length-prefix layout definitions
// ABOUTME: Shared between the stream demuxer and the wire writer
package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Phase is the position in the six-field cycle of a turn
type Phase int

const (
	PhaseQueryLength Phase = iota
	PhaseQuery
	PhaseResponseTextLength
	PhaseResponseText
	PhaseResponseAudioLength
	PhaseResponseAudio

	// PhaseCount is the number of phases in one cycle
	PhaseCount = 6
)

var phaseNames = [PhaseCount]string{
	"queryLength",
	"query",
	"responseTextLength",
	"responseText",
	"responseAudioLength",
	"responseAudio",
}

// Next returns the phase that follows p in the cycle
func (p Phase) Next() Phase {
	return (p + 1) % PhaseCount
}

// IsLength reports whether p expects a length prefix
func (p Phase) IsLength() bool {
	return p%2 == 0
}

func (p Phase) String() string {
	if p < 0 || p >= PhaseCount {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Layout holds the byte width of each length prefix.
// Valid widths are 2 and 4.
type Layout struct {
	Name                string
	QueryLength         int
	ResponseTextLength  int
	ResponseAudioLength int
}

var (
	// LayoutV1 uses 32-bit prefixes for every field
	LayoutV1 = Layout{Name: "v1", QueryLength: 4, ResponseTextLength: 4, ResponseAudioLength: 4}

	// LayoutCompact uses 16-bit prefixes for the text fields
	LayoutCompact = Layout{Name: "compact", QueryLength: 2, ResponseTextLength: 2, ResponseAudioLength: 4}
)

// LayoutByName resolves a named layout
func LayoutByName(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "", "v1":
		return LayoutV1, nil
	case "compact":
		return LayoutCompact, nil
	default:
		return Layout{}, fmt.Errorf("unknown wire layout: %s", name)
	}
}

// Width returns the prefix width for a length phase, 0 for body phases
func (l Layout) Width(p Phase) int {
	switch p {
	case PhaseQueryLength:
		return l.QueryLength
	case PhaseResponseTextLength:
		return l.ResponseTextLength
	case PhaseResponseAudioLength:
		return l.ResponseAudioLength
	}
	return 0
}

// Validate checks every prefix width
func (l Layout) Validate() error {
	for _, p := range []Phase{PhaseQueryLength, PhaseResponseTextLength, PhaseResponseAudioLength} {
		if w := l.Width(p); w != 2 && w != 4 {
			return fmt.Errorf("invalid %s width: %d (supported: 2, 4)", p, w)
		}
	}
	return nil
}

// MaxLength returns the largest value a prefix of the given phase can carry
func (l Layout) MaxLength(p Phase) uint32 {
	if l.Width(p) == 2 {
		return 0xFFFF
	}
	return 0xFFFFFFFF
}

// DecodeLength decodes a little-endian prefix of 2 or 4 bytes
func DecodeLength(b []byte) (uint32, error) {
	switch len(b) {
	case 2:
		return uint32(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return binary.LittleEndian.Uint32(b), nil
	default:
		return 0, fmt.Errorf("invalid length prefix size: %d", len(b))
	}
}

// AppendLength appends n as a little-endian prefix of the given width
func AppendLength(dst []byte, width int, n uint32) []byte {
	if width == 2 {
		return binary.LittleEndian.AppendUint16(dst, uint16(n))
	}
	return binary.LittleEndian.AppendUint32(dst, n)
}
