// ABOUTME: Container/codec detection from payload magic bytes
// ABOUTME: Lets the sink pick a decoder for codec-opaque segments
package audio

import "bytes"

// SniffCodec guesses the codec of an encoded payload, CodecUnknown if unsure
func SniffCodec(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return CodecWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return CodecFLAC
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return CodecOpus
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return CodecMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xF6 == 0xF0:
		// ADTS sync word with layer bits 00
		return CodecAAC
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return CodecMP3
	}
	return CodecUnknown
}
