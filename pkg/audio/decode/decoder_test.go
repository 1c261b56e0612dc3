// ABOUTME: Tests for codec dispatch and compressed decoders
// ABOUTME: Tests decoder selection, sniffing and invalid payload handling
package decode

import (
	"errors"
	"testing"

	"github.com/harperreed/chatterbox-go/pkg/audio"
)

func TestNewDecoder(t *testing.T) {
	for _, codec := range []string{audio.CodecWAV, audio.CodecPCM, audio.CodecMP3, audio.CodecOpus, audio.CodecFLAC} {
		dec, err := New(codec)
		if err != nil {
			t.Errorf("%s: unexpected error %v", codec, err)
			continue
		}
		if err := dec.Close(); err != nil {
			t.Errorf("%s: close failed: %v", codec, err)
		}
	}
}

func TestNewDecoder_Unsupported(t *testing.T) {
	for _, codec := range []string{audio.CodecAAC, audio.CodecUnknown, "webm"} {
		if _, err := New(codec); !errors.Is(err, ErrUnsupportedCodec) {
			t.Errorf("%q: expected ErrUnsupportedCodec, got %v", codec, err)
		}
	}
}

func TestSegmentSniffsUnknownCodec(t *testing.T) {
	seg := &audio.Segment{
		Codec: audio.CodecUnknown,
		Data:  wavFile(16000, 2, 16, false, []byte{0, 1, 0, 2, 0, 3, 0, 4}),
	}

	buf, err := Segment(seg)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Frames() != 2 || buf.Format.Channels != 2 {
		t.Errorf("expected 2 stereo frames, got %d frames of %+v", buf.Frames(), buf.Format)
	}
}

func TestSegmentUnsupported(t *testing.T) {
	seg := &audio.Segment{Codec: audio.CodecAAC, Data: []byte{0xFF, 0xF1, 0x00}}

	if _, err := Segment(seg); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestCompressedDecoders_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		dec  Decoder
		data []byte
	}{
		{name: "mp3 empty", dec: NewMP3(), data: nil},
		{name: "opus without head", dec: NewOpus(), data: []byte("OggS not really")},
		{name: "flac bad signature", dec: NewFLAC(), data: []byte("fLaX0000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.dec.Decode(tt.data); err == nil {
				t.Error("expected error for invalid payload")
			}
		})
	}
}

func TestOpusChannels(t *testing.T) {
	head := append([]byte("OggS....OpusHead"), 1, 2, 0x38, 0x01)

	channels, err := opusChannels(head)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channels != 2 {
		t.Errorf("expected 2 channels, got %d", channels)
	}

	bad := append([]byte("OpusHead"), 1, 6)
	if _, err := opusChannels(bad); err == nil {
		t.Error("expected error for surround stream")
	}
}
