// ABOUTME: Audio decoder package for response segments
// ABOUTME: Decodes whole WAV, PCM, MP3, Ogg Opus and FLAC payloads
// Package decode turns one encoded audio segment into PCM.
//
// Segments are self-contained, so every decoder consumes the complete
// payload and returns an audio.Buffer with int32 samples in the 24-bit
// range. AAC has no decoder; playing it fails with ErrUnsupportedCodec.
//
// Example:
//
//	buf, err := decode.Segment(seg)
//	if err != nil {
//		return err
//	}
//	log.Printf("decoded %v of audio", buf.Duration())
package decode
