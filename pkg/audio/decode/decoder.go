// ABOUTME: Decoder interface and codec dispatch
// ABOUTME: Picks a decoder for a segment from its codec or magic bytes
package decode

import (
	"errors"
	"fmt"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

// ErrUnsupportedCodec is returned for codecs without a decoder
var ErrUnsupportedCodec = errors.New("unsupported codec")

// Decoder decodes a complete encoded payload to PCM
type Decoder interface {
	// Decode converts encoded audio data to an interleaved PCM buffer
	Decode(data []byte) (audio.Buffer, error)

	// Close releases decoder resources
	Close() error
}

// New returns a decoder for codec. Raw PCM uses DefaultPCMFormat.
func New(codec string) (Decoder, error) {
	switch codec {
	case audio.CodecWAV:
		return NewWAV(), nil
	case audio.CodecPCM:
		return NewPCM(DefaultPCMFormat)
	case audio.CodecMP3:
		return NewMP3(), nil
	case audio.CodecOpus:
		return NewOpus(), nil
	case audio.CodecFLAC:
		return NewFLAC(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
}

// Segment decodes a segment's payload, sniffing the codec when it is unknown
func Segment(seg *audio.Segment) (audio.Buffer, error) {
	codec := seg.Codec
	if codec == audio.CodecUnknown {
		codec = audio.SniffCodec(seg.Data)
	}

	dec, err := New(codec)
	if err != nil {
		return audio.Buffer{}, err
	}
	defer dec.Close()

	buf, err := dec.Decode(seg.Data)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to decode %s segment: %w", codec, err)
	}
	return buf, nil
}
