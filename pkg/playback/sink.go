// ABOUTME: Audio sink contract consumed by the scheduler
// ABOUTME: Defines Sink, the optional Stopper and SinkError
package playback

import (
	"fmt"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

// Sink plays one segment at a time and reports when it is done
type Sink interface {
	// Play starts playback of seg and returns without waiting for it.
	// A returned error means the segment never started.
	Play(seg *audio.Segment) error

	// OnFinished registers the callback invoked when a segment stops
	// playing, with a non-nil error if playback failed part way.
	OnFinished(fn func(seg *audio.Segment, err error))
}

// Stopper is implemented by sinks that can interrupt the playing segment
type Stopper interface {
	Stop()
}

// SinkError reports a segment the sink failed to play. It never aborts the turn.
type SinkError struct {
	SegmentID string
	Seq       int
	Err       error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("playback of segment #%d (%s) failed: %v", e.Seq, e.SegmentID, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
