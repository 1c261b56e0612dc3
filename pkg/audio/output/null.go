// ABOUTME: Null audio output for headless runs
// ABOUTME: Discards samples, optionally pacing writes at the playback rate
package output

import (
	"fmt"
	"sync"
	"time"
)

// Null discards audio. With realtime set, Write sleeps for the audio's
// duration so segment timing matches a real device.
type Null struct {
	realtime bool

	mu         sync.Mutex
	sampleRate int
	channels   int
	written    int64
	open       bool
}

// NewNull creates a null output
func NewNull(realtime bool) *Null {
	return &Null{realtime: realtime}
}

// Open records the format
func (n *Null) Open(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid output format: %dHz %dch", sampleRate, channels)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sampleRate = sampleRate
	n.channels = channels
	n.open = true
	return nil
}

// Write discards samples
func (n *Null) Write(samples []int32) error {
	n.mu.Lock()
	if !n.open {
		n.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	n.written += int64(len(samples))
	frames := len(samples) / n.channels
	rate := n.sampleRate
	n.mu.Unlock()

	if n.realtime {
		time.Sleep(time.Duration(frames) * time.Second / time.Duration(rate))
	}
	return nil
}

// Close marks the output closed
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	return nil
}

// Written returns the number of samples written so far
func (n *Null) Written() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}
