// ABOUTME: Wire format encoder
// ABOUTME: Writes query/response rounds with length prefixes
package wire

import (
	"fmt"
	"io"
)

// Writer encodes rounds of the six-field cycle onto an io.Writer
type Writer struct {
	w      io.Writer
	layout Layout
	rounds int
}

// NewWriter creates a writer for the given layout
func NewWriter(w io.Writer, layout Layout) *Writer {
	return &Writer{w: w, layout: layout}
}

// WriteRound writes one full cycle: query, response text, response audio.
// The round is written with a single Write call so callers that flush
// after each round deliver whole rounds.
func (w *Writer) WriteRound(query, text string, audio []byte) error {
	buf, err := w.layout.AppendRound(nil, query, text, audio)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("write round %d: %w", w.rounds, err)
	}
	w.rounds++
	return nil
}

// Rounds returns the number of rounds written
func (w *Writer) Rounds() int {
	return w.rounds
}

// AppendRound appends one encoded round to dst
func (l Layout) AppendRound(dst []byte, query, text string, audio []byte) ([]byte, error) {
	fields := []struct {
		phase Phase
		data  []byte
	}{
		{PhaseQueryLength, []byte(query)},
		{PhaseResponseTextLength, []byte(text)},
		{PhaseResponseAudioLength, audio},
	}

	for _, f := range fields {
		if uint64(len(f.data)) > uint64(l.MaxLength(f.phase)) {
			return nil, fmt.Errorf("%s field too large for %d-byte prefix: %d bytes",
				f.phase.Next(), l.Width(f.phase), len(f.data))
		}
		dst = AppendLength(dst, l.Width(f.phase), uint32(len(f.data)))
		dst = append(dst, f.data...)
	}

	return dst, nil
}
