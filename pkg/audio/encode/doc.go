// ABOUTME: Audio encoder package for encoding PCM
// ABOUTME: Provides Encoder interface with raw PCM and WAV implementations
// Package encode provides audio encoders used to produce response audio.
//
// All encoders accept int32 samples in 24-bit range. The WAV encoder
// wraps the PCM bytes in a RIFF header so every payload is a complete,
// independently playable segment.
//
// Example:
//
//	encoder, err := encode.NewWAV(format)
//	data, err := encoder.Encode(samples)
package encode
