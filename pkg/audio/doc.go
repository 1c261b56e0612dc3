// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer, Segment and sample conversion functions
// Package audio provides the audio types shared by the decoder, the
// playback scheduler and the output sinks.
//
//   - Format and Buffer describe decoded PCM (int32, 24-bit range)
//   - Segment is one encoded response clip with a releasable handle
//   - SegmentStore allocates handles (in memory or as temp files)
//
// Example:
//
//	store := audio.NewMemoryStore()
//	seg, err := store.Put(payload, audio.CodecMP3)
//	defer seg.Release()
package audio
