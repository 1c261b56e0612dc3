// ABOUTME: PCM and WAV audio decoders
// ABOUTME: Decodes 16-bit and 24-bit PCM, bare or in a RIFF/WAVE container
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

// DefaultPCMFormat is the raw PCM layout TTS services emit (24kHz mono 16-bit)
var DefaultPCMFormat = audio.Format{
	Codec:      audio.CodecPCM,
	SampleRate: 24000,
	Channels:   1,
	BitDepth:   16,
}

// PCMDecoder decodes headerless PCM of a known format
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{format: format}, nil
}

// Decode converts PCM bytes to int32 samples
func (d *PCMDecoder) Decode(data []byte) (audio.Buffer, error) {
	return audio.Buffer{
		Samples: decodeSamples(data, d.format.BitDepth),
		Format:  d.format,
	}, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

func decodeSamples(data []byte, bitDepth int) []int32 {
	if bitDepth == 24 {
		numSamples := len(data) / 3
		samples := make([]int32, numSamples)
		for i := 0; i < numSamples; i++ {
			b := [3]byte{data[i*3], data[i*3+1], data[i*3+2]}
			samples[i] = audio.SampleFrom24Bit(b)
		}
		return samples
	}

	numSamples := len(data) / 2
	samples := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}
	return samples
}

// WAVDecoder decodes integer PCM in a RIFF/WAVE container
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV() Decoder {
	return &WAVDecoder{}
}

// Decode walks the RIFF chunks for "fmt " and "data"
func (d *WAVDecoder) Decode(data []byte) (audio.Buffer, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return audio.Buffer{}, fmt.Errorf("not a RIFF/WAVE payload")
	}

	var format audio.Format
	haveFormat := false
	pos := 12

	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8:]

		// Streamed WAVs may carry a placeholder data size
		if size > len(body) {
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return audio.Buffer{}, fmt.Errorf("short fmt chunk: %d bytes", size)
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 && tag != 0xFFFE {
				return audio.Buffer{}, fmt.Errorf("unsupported WAV format tag 0x%04x", tag)
			}
			format = audio.Format{
				Codec:      audio.CodecWAV,
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
				BitDepth:   int(binary.LittleEndian.Uint16(body[14:16])),
			}
			if format.BitDepth != 16 && format.BitDepth != 24 {
				return audio.Buffer{}, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
			}
			if format.Channels < 1 {
				return audio.Buffer{}, fmt.Errorf("invalid channel count: %d", format.Channels)
			}
			haveFormat = true

		case "data":
			if !haveFormat {
				return audio.Buffer{}, fmt.Errorf("data chunk before fmt chunk")
			}
			return audio.Buffer{
				Samples: decodeSamples(body, format.BitDepth),
				Format:  format,
			}, nil
		}

		// Chunks are word aligned
		pos += 8 + size + size%2
	}

	return audio.Buffer{}, fmt.Errorf("no data chunk")
}

// Close releases resources
func (d *WAVDecoder) Close() error {
	return nil
}
