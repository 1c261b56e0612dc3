// ABOUTME: Tests for the Ogg Opus encoder
// ABOUTME: Checks page framing and round-trips through the Opus decoder
package encode

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/audio/decode"
)

func sine(sampleRate int, seconds float64) []int32 {
	samples := make([]int32, int(float64(sampleRate)*seconds))
	for i := range samples {
		samples[i] = int32(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 4000000)
	}
	return samples
}

// oggPages splits a stream into pages, returning each header type and granule
func oggPages(t *testing.T, data []byte) (flags []byte, granules []uint64) {
	t.Helper()
	for len(data) > 0 {
		if len(data) < 27 || !bytes.Equal(data[:4], []byte("OggS")) {
			t.Fatalf("bad page header at %d remaining bytes", len(data))
		}
		segments := int(data[26])
		size := 27 + segments
		for _, l := range data[27 : 27+segments] {
			size += int(l)
		}

		page := append([]byte(nil), data[:size]...)
		want := binary.LittleEndian.Uint32(page[22:])
		binary.LittleEndian.PutUint32(page[22:], 0)
		if got := oggCRC(page); got != want {
			t.Fatalf("page %d checksum %08x, want %08x", len(flags), got, want)
		}

		flags = append(flags, data[5])
		granules = append(granules, binary.LittleEndian.Uint64(data[6:]))
		data = data[size:]
	}
	return flags, granules
}

func TestOpusEncoderPages(t *testing.T) {
	enc, err := NewOpus(audio.Format{Codec: audio.CodecOpus, SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatalf("NewOpus failed: %v", err)
	}
	defer enc.Close()

	// 10 frames and a partial one
	data, err := enc.Encode(sine(24000, 0.21))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if audio.SniffCodec(data) != audio.CodecOpus {
		t.Errorf("expected stream to sniff as opus")
	}
	if !bytes.Contains(data[:64], []byte("OpusHead")) {
		t.Error("expected OpusHead in the first page")
	}

	flags, granules := oggPages(t, data)
	if len(flags) != 2+11 {
		t.Fatalf("expected 13 pages, got %d", len(flags))
	}
	if flags[0] != oggBOS || flags[len(flags)-1] != oggEOS {
		t.Errorf("unexpected page flags: %v", flags)
	}
	if granules[0] != 0 || granules[1] != 0 {
		t.Errorf("header pages must have granule 0, got %v", granules[:2])
	}
	if last := granules[len(granules)-1]; last != opusPreSkip+11*960 {
		t.Errorf("expected final granule %d, got %d", opusPreSkip+11*960, last)
	}
}

func TestOpusRoundTrip(t *testing.T) {
	enc, err := NewOpus(audio.Format{Codec: audio.CodecOpus, SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatalf("NewOpus failed: %v", err)
	}
	data, err := enc.Encode(sine(24000, 0.5))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	buf, err := decode.NewOpus().Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Format.SampleRate != 48000 || buf.Format.Channels != 1 {
		t.Errorf("unexpected format: %+v", buf.Format)
	}
	if frames := buf.Frames(); frames < 23000 || frames > 25000 {
		t.Errorf("expected about half a second at 48kHz, got %d frames", frames)
	}
}

func TestOpusEncodeEmpty(t *testing.T) {
	enc, err := NewOpus(audio.Format{Codec: audio.CodecOpus, SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("NewOpus failed: %v", err)
	}
	data, err := enc.Encode(nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// One silent frame keeps the file valid
	flags, _ := oggPages(t, data)
	if len(flags) != 3 {
		t.Errorf("expected 3 pages, got %d", len(flags))
	}
}

func TestNewOpus_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
	}{
		{"wrong codec", audio.Format{Codec: audio.CodecWAV, SampleRate: 48000, Channels: 1}},
		{"bad rate", audio.Format{Codec: audio.CodecOpus, SampleRate: 44100, Channels: 1}},
		{"bad channels", audio.Format{Codec: audio.CodecOpus, SampleRate: 48000, Channels: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOpus(tt.format); err == nil {
				t.Error("expected error")
			}
		})
	}
}
