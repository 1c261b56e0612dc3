// ABOUTME: PCM and WAV audio encoders
// ABOUTME: Encodes int32 samples to 16-bit or 24-bit PCM, optionally in RIFF/WAVE
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{bitDepth: format.BitDepth}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	return appendSamples(make([]byte, 0, len(samples)*e.bitDepth/8), samples, e.bitDepth), nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

func appendSamples(dst []byte, samples []int32, bitDepth int) []byte {
	if bitDepth == 24 {
		for _, sample := range samples {
			b := audio.SampleTo24Bit(sample)
			dst = append(dst, b[0], b[1], b[2])
		}
		return dst
	}

	for _, sample := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(audio.SampleToInt16(sample)))
	}
	return dst
}

// WAVEncoder encodes a complete RIFF/WAVE file per call
type WAVEncoder struct {
	format audio.Format
}

// NewWAV creates a new WAV encoder
func NewWAV(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecWAV {
		return nil, fmt.Errorf("invalid codec for WAV encoder: %s", format.Codec)
	}
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.Channels < 1 || format.SampleRate < 1 {
		return nil, fmt.Errorf("invalid WAV format: %d Hz, %d channels", format.SampleRate, format.Channels)
	}

	return &WAVEncoder{format: format}, nil
}

// Encode returns a WAV file holding samples
func (e *WAVEncoder) Encode(samples []int32) ([]byte, error) {
	bytesPerSample := e.format.BitDepth / 8
	dataSize := len(samples) * bytesPerSample
	blockAlign := e.format.Channels * bytesPerSample

	out := make([]byte, 0, 44+dataSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataSize))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // integer PCM
	out = binary.LittleEndian.AppendUint16(out, uint16(e.format.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(e.format.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(e.format.SampleRate*blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(e.format.BitDepth))

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))

	return appendSamples(out, samples, e.format.BitDepth), nil
}

// Close releases resources
func (e *WAVEncoder) Close() error {
	return nil
}
