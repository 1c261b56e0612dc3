// ABOUTME: FIFO playback scheduler
// ABOUTME: Plays segments in arrival order and signals PlaybackComplete
package playback

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

// DefaultPollInterval is how often an idle scheduler checks for work
const DefaultPollInterval = 50 * time.Millisecond

var (
	// ErrStopped is returned by Enqueue after Clear or Stop
	ErrStopped = errors.New("scheduler stopped")

	// ErrStreamComplete is returned by Enqueue after NotifyStreamComplete
	ErrStreamComplete = errors.New("stream already complete")
)

// State is the scheduler's playback state
type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "idle"
}

// Config holds scheduler configuration
type Config struct {
	// PollInterval is the retry delay while idle (default 50ms)
	PollInterval time.Duration

	Debug bool

	// OnStart is called when a segment is handed to the sink
	OnStart func(seg *audio.Segment)

	// OnFinished is called after a segment played successfully
	OnFinished func(seg *audio.Segment)

	// OnError receives a *SinkError for each segment that failed
	OnError func(err error)

	// OnComplete fires once, when all response audio has played
	OnComplete func()
}

// Stats tracks scheduler metrics
type Stats struct {
	Enqueued int64
	Played   int64
	Failed   int64
	Dropped  int64
}

type finish struct {
	seg *audio.Segment
	err error
}

// Scheduler owns enqueued segments until they finish playing, then
// releases them. Only the Run goroutine calls into the sink.
type Scheduler struct {
	sink   Sink
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	queue          []*audio.Segment
	playing        *audio.Segment
	finished       []finish
	streamComplete bool
	completed      bool
	stopped        bool
	stats          Stats

	wake chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler and registers it with the sink
func NewScheduler(sink Sink, config Config) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		sink:   sink,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	sink.OnFinished(s.onFinished)

	return s
}

// Run drives playback until Stop or Clear is called
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.step()
		case <-ticker.C:
			s.step()
		}
	}
}

// Enqueue appends a segment to the queue. The scheduler owns it from now on.
func (s *Scheduler) Enqueue(seg *audio.Segment) error {
	s.mu.Lock()
	if s.stopped || s.streamComplete {
		err := ErrStopped
		if !s.stopped {
			err = ErrStreamComplete
		}
		s.mu.Unlock()
		seg.Release()
		return err
	}
	s.queue = append(s.queue, seg)
	s.stats.Enqueued++
	s.mu.Unlock()

	s.signal()
	return nil
}

// NotifyStreamComplete marks that no more segments will arrive
func (s *Scheduler) NotifyStreamComplete() {
	s.mu.Lock()
	s.streamComplete = true
	s.mu.Unlock()

	s.signal()
}

// Clear cancels playback: the playing segment is stopped, every owned
// segment is released and PlaybackComplete will not fire. Returns the
// number of segments that never finished playing.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	pending := s.queue
	playing := s.playing
	s.queue = nil
	s.playing = nil
	s.finished = nil
	s.stopped = true
	dropped := len(pending)
	if playing != nil {
		dropped++
	}
	s.stats.Dropped += int64(dropped)
	s.mu.Unlock()

	s.cancel()

	if playing != nil {
		if stopper, ok := s.sink.(Stopper); ok {
			stopper.Stop()
		}
		playing.Release()
	}
	for _, seg := range pending {
		seg.Release()
	}

	if s.config.Debug && dropped > 0 {
		log.Printf("[debug] playback cleared, %d segments dropped", dropped)
	}

	return dropped
}

// Stop ends the Run loop. Segments still owned are released.
func (s *Scheduler) Stop() {
	s.Clear()
}

// Done is closed when PlaybackComplete fires
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// State reports whether a segment is playing
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing != nil {
		return StatePlaying
	}
	return StateIdle
}

// Pending returns the number of queued segments, excluding the playing one
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) onFinished(seg *audio.Segment, err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.finished = append(s.finished, finish{seg: seg, err: err})
	s.mu.Unlock()

	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// step retires finished segments, starts the next one and checks for completion
func (s *Scheduler) step() {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}

		var retired []finish
		for _, f := range s.finished {
			// Finishes for anything but the playing segment are stale
			if s.playing != nil && f.seg == s.playing {
				retired = append(retired, f)
				s.playing = nil
			}
		}
		s.finished = s.finished[:0]

		var next *audio.Segment
		if s.playing == nil && len(s.queue) > 0 {
			next = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.playing = next
		}

		complete := false
		if s.playing == nil && len(s.queue) == 0 && s.streamComplete && !s.completed {
			s.completed = true
			complete = true
		}
		s.mu.Unlock()

		for _, f := range retired {
			s.retire(f.seg, f.err)
		}

		if complete {
			if s.config.Debug {
				log.Printf("[debug] playback complete")
			}
			if s.config.OnComplete != nil {
				s.config.OnComplete()
			}
			close(s.done)
			return
		}

		if next == nil {
			return
		}

		if s.config.Debug {
			log.Printf("[debug] playing %s", next)
		}
		if s.config.OnStart != nil {
			s.config.OnStart(next)
		}

		// Clear may have taken and released the segment since it was popped
		if !s.owns(next) {
			return
		}

		err := s.sink.Play(next)

		s.mu.Lock()
		owned := !s.stopped && s.playing == next
		if err != nil && owned {
			s.playing = nil
		}
		s.mu.Unlock()

		if !owned {
			// Cleared while the sink was starting: silence it again
			if err == nil {
				if stopper, ok := s.sink.(Stopper); ok {
					stopper.Stop()
				}
			}
			return
		}
		if err != nil {
			s.retire(next, err)
		}
		// Loop again: the sink may already have finished the segment
	}
}

func (s *Scheduler) owns(seg *audio.Segment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.playing == seg
}

// retire releases a segment that left the sink and reports the outcome
func (s *Scheduler) retire(seg *audio.Segment, err error) {
	if relErr := seg.Release(); relErr != nil {
		log.Printf("Failed to release segment %s: %v", seg.ID, relErr)
	}

	s.mu.Lock()
	if err != nil {
		s.stats.Failed++
	} else {
		s.stats.Played++
	}
	s.mu.Unlock()

	if err != nil {
		sinkErr := &SinkError{SegmentID: seg.ID, Seq: seg.Seq, Err: err}
		log.Printf("Playback error: %v", sinkErr)
		if s.config.OnError != nil {
			s.config.OnError(sinkErr)
		}
		return
	}

	if s.config.OnFinished != nil {
		s.config.OnFinished(seg)
	}
}
