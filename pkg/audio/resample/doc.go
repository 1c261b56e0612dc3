// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded segments to the output device's rate and layout
// Package resample provides sample rate and channel conversion.
//
// Decoded segments arrive at whatever rate the TTS service produced
// (24kHz PCM, 44.1kHz MP3, 48kHz Opus) while the output device runs at
// one fixed rate, so the sink converts every buffer before writing it.
//
// Example:
//
//	buf = resample.ToChannels(resample.ToRate(buf, 48000), 2)
package resample
