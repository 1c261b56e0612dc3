// ABOUTME: Segment sink bridging the playback scheduler to an Output
// ABOUTME: Decodes, converts and writes each segment on its own goroutine
package output

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/audio/decode"
	"github.com/harperreed/chatterbox-go/pkg/audio/resample"
)

// ErrInterrupted is reported for a segment cut short by Stop
var ErrInterrupted = errors.New("playback interrupted")

// SinkConfig holds segment sink configuration
type SinkConfig struct {
	// SampleRate and Channels fix the device format (default 48000 Hz stereo)
	SampleRate int
	Channels   int

	// ChunkDuration is the write granularity, which bounds Stop latency (default 20ms)
	ChunkDuration time.Duration

	// Decode overrides segment decoding (default decode.Segment)
	Decode func(seg *audio.Segment) (audio.Buffer, error)
}

// SegmentSink plays segments through an Output, one at a time
type SegmentSink struct {
	out    Output
	config SinkConfig

	mu       sync.Mutex
	finished func(seg *audio.Segment, err error)
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSegmentSink opens out in the configured format and returns a sink
func NewSegmentSink(out Output, config SinkConfig) (*SegmentSink, error) {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = 20 * time.Millisecond
	}
	if config.Decode == nil {
		config.Decode = decode.Segment
	}

	if err := out.Open(config.SampleRate, config.Channels); err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}

	return &SegmentSink{out: out, config: config}, nil
}

// OnFinished registers the completion callback
func (s *SegmentSink) OnFinished(fn func(seg *audio.Segment, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = fn
}

// Play decodes seg and starts writing it. Decode failures are returned
// directly since the segment never starts.
func (s *SegmentSink) Play(seg *audio.Segment) error {
	buf, err := s.config.Decode(seg)
	if err != nil {
		return err
	}

	buf = resample.ToChannels(resample.ToRate(buf, s.config.SampleRate), s.config.Channels)

	// A writer left over from a cancelled turn must finish first
	s.Stop()
	s.wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.write(ctx, seg, buf.Samples)
	return nil
}

func (s *SegmentSink) write(ctx context.Context, seg *audio.Segment, samples []int32) {
	defer s.wg.Done()

	chunk := int(s.config.ChunkDuration.Seconds()*float64(s.config.SampleRate)) * s.config.Channels
	if chunk <= 0 {
		chunk = s.config.Channels
	}

	var err error
	for off := 0; off < len(samples); off += chunk {
		if ctx.Err() != nil {
			err = ErrInterrupted
			break
		}
		end := min(off+chunk, len(samples))
		if werr := s.out.Write(samples[off:end]); werr != nil {
			err = fmt.Errorf("audio write failed: %w", werr)
			break
		}
	}

	s.mu.Lock()
	s.cancel = nil
	fn := s.finished
	s.mu.Unlock()

	if fn != nil {
		fn(seg, err)
	}
}

// Stop interrupts the playing segment
func (s *SegmentSink) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close stops playback, waits for the writer and closes the output
func (s *SegmentSink) Close() error {
	s.Stop()
	s.wg.Wait()

	if err := s.out.Close(); err != nil {
		log.Printf("Failed to close audio output: %v", err)
		return err
	}
	return nil
}
