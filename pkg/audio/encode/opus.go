// ABOUTME: Ogg Opus audio encoder
// ABOUTME: Wraps libopus and writes each call's output as a complete Ogg Opus file
package encode

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// Granule positions always count 48kHz samples
	opusGranuleRate = 48000

	// opusPreSkip is the encoder delay at 48kHz
	opusPreSkip = 312

	// An Opus packet never exceeds 4000 bytes
	maxOpusPacket = 4000

	oggBOS = 0x02
	oggEOS = 0x04
)

// OpusEncoder encodes 20ms Opus frames into an Ogg container
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel per frame
	serial     uint32
}

// NewOpus creates a new Ogg Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecOpus {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}
	switch format.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("unsupported Opus sample rate: %d", format.SampleRate)
	}
	if format.Channels != 1 && format.Channels != 2 {
		return nil, fmt.Errorf("unsupported Opus channel count: %d", format.Channels)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// 32 kbps per channel is plenty for speech
	if err := encoder.SetBitrate(32000 * format.Channels); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  format.SampleRate / 50,
		serial:     0x43484154,
	}, nil
}

// Encode returns an Ogg Opus file holding samples. The final frame is
// padded with silence.
func (e *OpusEncoder) Encode(samples []int32) ([]byte, error) {
	var out []byte
	var seq uint32

	out = appendOggPage(out, oggBOS, 0, e.serial, seq, opusHead(e.channels, e.sampleRate))
	seq++
	out = appendOggPage(out, 0, 0, e.serial, seq, opusTags())
	seq++

	frameLen := e.frameSize * e.channels
	granuleStep := uint64(e.frameSize * opusGranuleRate / e.sampleRate)
	granule := uint64(opusPreSkip)
	pcm := make([]int16, frameLen)
	packet := make([]byte, maxOpusPacket)

	frames := (len(samples) + frameLen - 1) / frameLen
	if frames == 0 {
		frames = 1
	}
	for f := 0; f < frames; f++ {
		clear(pcm)
		start := f * frameLen
		for i := 0; i < frameLen && start+i < len(samples); i++ {
			pcm[i] = audio.SampleToInt16(samples[start+i])
		}

		n, err := e.encoder.Encode(pcm, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode failed: %w", err)
		}

		granule += granuleStep
		var flags byte
		if f == frames-1 {
			flags = oggEOS
		}
		out = appendOggPage(out, flags, granule, e.serial, seq, packet[:n])
		seq++
	}

	return out, nil
}

// Close closes the encoder
func (e *OpusEncoder) Close() error {
	// opus.Encoder doesn't have a Close method, nothing to do
	return nil
}

func opusHead(channels, sampleRate int) []byte {
	head := []byte("OpusHead")
	head = append(head, 1, byte(channels))
	head = binary.LittleEndian.AppendUint16(head, opusPreSkip)
	head = binary.LittleEndian.AppendUint32(head, uint32(sampleRate))
	head = binary.LittleEndian.AppendUint16(head, 0) // output gain
	return append(head, 0)                           // mapping family
}

func opusTags() []byte {
	const vendor = "chatterbox-go"
	tags := []byte("OpusTags")
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(vendor)))
	tags = append(tags, vendor...)
	return binary.LittleEndian.AppendUint32(tags, 0)
}

// appendOggPage writes packet as a single-packet page
func appendOggPage(dst []byte, flags byte, granule uint64, serial, seq uint32, packet []byte) []byte {
	// Lacing: runs of 255 and a final value below 255
	lacing := make([]byte, 0, len(packet)/255+1)
	for n := len(packet); ; n -= 255 {
		if n < 255 {
			lacing = append(lacing, byte(n))
			break
		}
		lacing = append(lacing, 255)
	}

	start := len(dst)
	dst = append(dst, "OggS"...)
	dst = append(dst, 0, flags)
	dst = binary.LittleEndian.AppendUint64(dst, granule)
	dst = binary.LittleEndian.AppendUint32(dst, serial)
	dst = binary.LittleEndian.AppendUint32(dst, seq)
	dst = binary.LittleEndian.AppendUint32(dst, 0) // checksum, filled below
	dst = append(dst, byte(len(lacing)))
	dst = append(dst, lacing...)
	dst = append(dst, packet...)

	binary.LittleEndian.PutUint32(dst[start+22:], oggCRC(dst[start:]))
	return dst
}

var oggCRCTable = func() [256]uint32 {
	var table [256]uint32
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return table
}()

// oggCRC is the unreflected CRC-32 Ogg pages carry
func oggCRC(page []byte) uint32 {
	var crc uint32
	for _, b := range page {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}
