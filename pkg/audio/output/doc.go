// ABOUTME: Audio output package for playing response segments
// ABOUTME: Provides Output devices and a segment sink for the playback scheduler
// Package output provides audio playback.
//
// Output is a PCM device (oto, or a null device for headless runs).
// SegmentSink decodes each segment, converts it to the device format
// and writes it on a goroutine, reporting completion the way
// playback.Sink expects.
//
// Example:
//
//	out := output.NewOto()
//	sink, err := output.NewSegmentSink(out, output.SinkConfig{})
//	sched := playback.NewScheduler(sink, playback.Config{})
package output
