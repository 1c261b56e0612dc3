// ABOUTME: Playable audio segments and their resource handles
// ABOUTME: Memory and temp-file stores hand out releasable segments
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Segment is one independently playable unit of response audio.
// Handle names the playable resource backing the segment (a mem:// URL
// or a temp file path); it is valid until Release is called.
type Segment struct {
	ID     string
	Seq    int
	Codec  string
	Data   []byte
	Handle string

	release     func() error
	releaseOnce sync.Once
	releaseErr  error
	released    atomic.Bool
}

// Release frees the segment's resource. Safe to call more than once.
func (s *Segment) Release() error {
	s.releaseOnce.Do(func() {
		s.released.Store(true)
		if s.release != nil {
			s.releaseErr = s.release()
		}
	})
	return s.releaseErr
}

// Released reports whether Release has been called
func (s *Segment) Released() bool {
	return s.released.Load()
}

func (s *Segment) String() string {
	return fmt.Sprintf("Segment{#%d %s codec=%s bytes=%d}", s.Seq, s.ID, s.Codec, len(s.Data))
}

// SegmentStore turns raw audio payloads into segments with a handle
type SegmentStore interface {
	Put(data []byte, codec string) (*Segment, error)
}

// MemoryStore keeps payloads in memory and hands out mem:// handles
type MemoryStore struct {
	mu   sync.Mutex
	live map[string]struct{}
	seq  int
}

// NewMemoryStore creates an in-memory segment store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{live: make(map[string]struct{})}
}

// Put creates a segment that owns data
func (m *MemoryStore) Put(data []byte, codec string) (*Segment, error) {
	id := uuid.New().String()

	m.mu.Lock()
	m.live[id] = struct{}{}
	seq := m.seq
	m.seq++
	m.mu.Unlock()

	seg := &Segment{
		ID:     id,
		Seq:    seq,
		Codec:  resolveCodec(codec, data),
		Data:   data,
		Handle: "mem://" + id,
	}
	seg.release = func() error {
		m.mu.Lock()
		delete(m.live, id)
		m.mu.Unlock()
		return nil
	}

	return seg, nil
}

// Live returns the number of segments not yet released
func (m *MemoryStore) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// FileStore writes each payload to a temp file; the path is the handle
type FileStore struct {
	dir  string
	mu   sync.Mutex
	seq  int
	live int
}

// NewFileStore creates a store under dir (os.TempDir when empty)
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create segment dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes data to a new file and returns a segment pointing at it
func (f *FileStore) Put(data []byte, codec string) (*Segment, error) {
	id := uuid.New().String()
	codec = resolveCodec(codec, data)

	ext := codec
	if ext == CodecUnknown {
		ext = "bin"
	}
	path := filepath.Join(f.dir, fmt.Sprintf("response-%s.%s", id, ext))

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write segment: %w", err)
	}

	f.mu.Lock()
	seq := f.seq
	f.seq++
	f.live++
	f.mu.Unlock()

	seg := &Segment{
		ID:     id,
		Seq:    seq,
		Codec:  codec,
		Data:   data,
		Handle: path,
	}
	seg.release = func() error {
		f.mu.Lock()
		f.live--
		f.mu.Unlock()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove segment file: %w", err)
		}
		return nil
	}

	return seg, nil
}

// Live returns the number of segment files not yet released
func (f *FileStore) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// resolveCodec prefers sniffing the payload over the declared hint
func resolveCodec(hint string, data []byte) string {
	if c := SniffCodec(data); c != CodecUnknown {
		return c
	}
	return hint
}
