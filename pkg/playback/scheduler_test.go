// ABOUTME: Tests for the playback scheduler
// ABOUTME: Tests ordering, completion, sink errors and cancellation
package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

// fakeSink records playback and lets the test decide when segments finish
type fakeSink struct {
	mu        sync.Mutex
	fn        func(*audio.Segment, error)
	started   chan *audio.Segment
	playErr   map[int]error
	active    int
	maxActive int
	stops     int

	// beforePlay runs at the top of Play, outside the lock
	beforePlay func(*audio.Segment)
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		started: make(chan *audio.Segment, 16),
		playErr: make(map[int]error),
	}
}

func (f *fakeSink) Play(seg *audio.Segment) error {
	f.mu.Lock()
	before := f.beforePlay
	f.mu.Unlock()
	if before != nil {
		before(seg)
	}

	f.mu.Lock()
	if err := f.playErr[seg.Seq]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	f.started <- seg
	return nil
}

func (f *fakeSink) OnFinished(fn func(*audio.Segment, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func (f *fakeSink) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeSink) finish(seg *audio.Segment, err error) {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	f.notify(seg, err)
}

// notify invokes the registered callback without touching playback state
func (f *fakeSink) notify(seg *audio.Segment, err error) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	fn(seg, err)
}

func (f *fakeSink) counters() (maxActive, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive, f.stops
}

func segments(t *testing.T, store *audio.MemoryStore, n int) []*audio.Segment {
	t.Helper()
	segs := make([]*audio.Segment, n)
	for i := range segs {
		seg, err := store.Put([]byte{byte(i)}, audio.CodecMP3)
		if err != nil {
			t.Fatalf("failed to create segment: %v", err)
		}
		segs[i] = seg
	}
	return segs
}

func expectStart(t *testing.T, sink *fakeSink) *audio.Segment {
	t.Helper()
	select {
	case seg := <-sink.started:
		return seg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback to start")
		return nil
	}
}

func expectNoStart(t *testing.T, sink *fakeSink) {
	t.Helper()
	select {
	case seg := <-sink.started:
		t.Fatalf("unexpected playback of %s", seg)
	case <-time.After(150 * time.Millisecond):
	}
}

func expectDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback complete")
	}
}

func expectNotDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
		t.Fatal("playback complete fired early")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPlaysInOrderOneAtATime(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()

	var mu sync.Mutex
	var finished []int
	s := NewScheduler(sink, Config{
		OnFinished: func(seg *audio.Segment) {
			mu.Lock()
			finished = append(finished, seg.Seq)
			mu.Unlock()
		},
	})
	go s.Run()
	defer s.Stop()

	segs := segments(t, store, 3)
	for _, seg := range segs {
		if err := s.Enqueue(seg); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	s.NotifyStreamComplete()

	for i := range segs {
		seg := expectStart(t, sink)
		if seg != segs[i] {
			t.Fatalf("expected segment %d, got %s", i, seg)
		}
		if s.State() != StatePlaying {
			t.Errorf("expected playing state, got %s", s.State())
		}

		// Nothing else starts until this one finishes
		expectNoStart(t, sink)
		sink.finish(seg, nil)
	}

	expectDone(t, s)

	if maxActive, _ := sink.counters(); maxActive != 1 {
		t.Errorf("expected at most one active segment, got %d", maxActive)
	}
	if store.Live() != 0 {
		t.Errorf("expected all segments released, %d live", store.Live())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(finished) != 3 || finished[0] != 0 || finished[1] != 1 || finished[2] != 2 {
		t.Errorf("unexpected finish order %v", finished)
	}

	stats := s.Stats()
	if stats.Enqueued != 3 || stats.Played != 3 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestCompleteWaitsForStreamComplete(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	s := NewScheduler(sink, Config{PollInterval: 10 * time.Millisecond})
	go s.Run()
	defer s.Stop()

	segs := segments(t, store, 1)
	s.Enqueue(segs[0])
	sink.finish(expectStart(t, sink), nil)

	// Queue is empty but more audio may still arrive
	expectNotDone(t, s)

	s.NotifyStreamComplete()
	expectDone(t, s)
}

func TestCompleteWaitsForPlayingSegment(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	s := NewScheduler(sink, Config{})
	go s.Run()
	defer s.Stop()

	segs := segments(t, store, 1)
	s.Enqueue(segs[0])
	s.NotifyStreamComplete()

	seg := expectStart(t, sink)
	expectNotDone(t, s)

	sink.finish(seg, nil)
	expectDone(t, s)
}

func TestCompleteWithoutSegments(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	s := NewScheduler(newFakeSink(), Config{
		OnComplete: func() {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	go s.Run()
	defer s.Stop()

	s.NotifyStreamComplete()
	expectDone(t, s)

	// Further polls must not fire it again
	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected OnComplete once, got %d", calls)
	}
}

func TestSegmentArrivesWhileIdle(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	s := NewScheduler(sink, Config{})
	go s.Run()
	defer s.Stop()

	time.Sleep(80 * time.Millisecond)
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}

	segs := segments(t, store, 1)
	s.Enqueue(segs[0])
	if seg := expectStart(t, sink); seg != segs[0] {
		t.Errorf("expected the enqueued segment, got %s", seg)
	}
}

func TestPlayErrorSkipsSegment(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	segs := segments(t, store, 3)
	sink.playErr[segs[1].Seq] = errors.New("unsupported codec")

	var mu sync.Mutex
	var sinkErrs []*SinkError
	s := NewScheduler(sink, Config{
		OnError: func(err error) {
			var se *SinkError
			if errors.As(err, &se) {
				mu.Lock()
				sinkErrs = append(sinkErrs, se)
				mu.Unlock()
			}
		},
	})
	go s.Run()
	defer s.Stop()

	for _, seg := range segs {
		s.Enqueue(seg)
	}
	s.NotifyStreamComplete()

	sink.finish(expectStart(t, sink), nil)
	seg := expectStart(t, sink)
	if seg != segs[2] {
		t.Fatalf("expected the failed segment to be skipped, got %s", seg)
	}
	if !segs[1].Released() {
		t.Error("failed segment should be released")
	}
	sink.finish(seg, nil)

	expectDone(t, s)

	mu.Lock()
	defer mu.Unlock()
	if len(sinkErrs) != 1 || sinkErrs[0].SegmentID != segs[1].ID {
		t.Fatalf("expected one SinkError for segment 1, got %v", sinkErrs)
	}
	if sinkErrs[0].Unwrap() == nil {
		t.Error("SinkError should wrap the sink's error")
	}
	if stats := s.Stats(); stats.Failed != 1 || stats.Played != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestFinishErrorAdvances(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()

	errCh := make(chan error, 1)
	s := NewScheduler(sink, Config{OnError: func(err error) { errCh <- err }})
	go s.Run()
	defer s.Stop()

	segs := segments(t, store, 2)
	s.Enqueue(segs[0])
	s.Enqueue(segs[1])

	sink.finish(expectStart(t, sink), errors.New("device lost"))

	if seg := expectStart(t, sink); seg != segs[1] {
		t.Fatalf("expected next segment, got %s", seg)
	}
	select {
	case err := <-errCh:
		var se *SinkError
		if !errors.As(err, &se) || se.Seq != segs[0].Seq {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected OnError")
	}
}

func TestStaleFinishIgnored(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	s := NewScheduler(sink, Config{})
	go s.Run()
	defer s.Stop()

	segs := segments(t, store, 3)
	s.Enqueue(segs[0])
	s.Enqueue(segs[1])
	expectStart(t, sink)

	// A finish for a segment that is not playing does not advance
	sink.notify(segs[2], nil)
	expectNoStart(t, sink)
	if segs[2].Released() {
		t.Error("stale finish should not release an unrelated segment")
	}
}

func TestClearReleasesEverything(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	s := NewScheduler(sink, Config{})
	go s.Run()

	segs := segments(t, store, 3)
	for _, seg := range segs {
		s.Enqueue(seg)
	}
	expectStart(t, sink)

	if dropped := s.Clear(); dropped != 3 {
		t.Errorf("expected 3 dropped segments, got %d", dropped)
	}
	if store.Live() != 0 {
		t.Errorf("expected no live segments after clear, got %d", store.Live())
	}
	if _, stops := sink.counters(); stops != 1 {
		t.Errorf("expected sink to be stopped once, got %d", stops)
	}
	if s.Pending() != 0 || s.State() != StateIdle {
		t.Error("expected empty idle scheduler after clear")
	}

	s.NotifyStreamComplete()
	expectNotDone(t, s)

	extra := segments(t, store, 1)[0]
	if err := s.Enqueue(extra); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if !extra.Released() {
		t.Error("rejected segment should be released")
	}
}

func TestClearFromOnStartSkipsSink(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()

	var s *Scheduler
	s = NewScheduler(sink, Config{
		OnStart: func(*audio.Segment) { s.Clear() },
	})
	go s.Run()

	seg := segments(t, store, 1)[0]
	if err := s.Enqueue(seg); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	expectNoStart(t, sink)
	if !seg.Released() {
		t.Error("cleared segment should be released")
	}
	if stats := s.Stats(); stats.Dropped != 1 || stats.Played != 0 || stats.Failed != 0 {
		t.Errorf("unexpected stats after clear: %+v", stats)
	}
}

func TestClearDuringPlayStopsSink(t *testing.T) {
	store := audio.NewMemoryStore()
	sink := newFakeSink()
	s := NewScheduler(sink, Config{})

	// Clear lands while the sink is still starting the segment
	sink.beforePlay = func(*audio.Segment) { s.Clear() }
	go s.Run()

	seg := segments(t, store, 1)[0]
	s.Enqueue(seg)
	expectStart(t, sink)

	deadline := time.Now().Add(time.Second)
	for {
		if _, stops := sink.counters(); stops >= 2 {
			break
		}
		if time.Now().After(deadline) {
			_, stops := sink.counters()
			t.Fatalf("expected the sink to be stopped after Play returned, got %d stops", stops)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !seg.Released() {
		t.Error("cleared segment should be released")
	}
	if s.State() != StateIdle {
		t.Error("expected idle scheduler after clear")
	}
}

func TestEnqueueAfterStreamComplete(t *testing.T) {
	store := audio.NewMemoryStore()
	s := NewScheduler(newFakeSink(), Config{})
	defer s.Stop()

	s.NotifyStreamComplete()

	seg := segments(t, store, 1)[0]
	if err := s.Enqueue(seg); !errors.Is(err, ErrStreamComplete) {
		t.Errorf("expected ErrStreamComplete, got %v", err)
	}
	if store.Live() != 0 {
		t.Errorf("expected rejected segment released, %d live", store.Live())
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StatePlaying.String() != "playing" {
		t.Errorf("unexpected state names %q %q", StateIdle, StatePlaying)
	}
}
