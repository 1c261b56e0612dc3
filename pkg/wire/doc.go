// ABOUTME: Chatterbox wire format package
// ABOUTME: Defines the field cycle, length-prefix layouts and an encoder
// Package wire describes the length-prefixed binary stream a voice
// endpoint returns for one conversation turn.
//
// A turn is a repetition of six fields in fixed order:
//
//	[len] query text (UTF-8)
//	[len] response text chunk (UTF-8)
//	[len] response audio segment (codec-opaque bytes)
//
// All length prefixes are little-endian unsigned integers. Their widths
// are described by a Layout so that deployments using 16-bit text lengths
// can be decoded without touching the decoder.
//
// Example:
//
//	w := wire.NewWriter(body, wire.LayoutV1)
//	err := w.WriteRound("what time is it?", "It is noon.", mp3Bytes)
package wire
