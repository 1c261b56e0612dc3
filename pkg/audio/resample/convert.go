// ABOUTME: Whole-buffer format conversion helpers
// ABOUTME: Resamples and up/down-mixes decoded audio buffers
package resample

import "github.com/harperreed/chatterbox-go/pkg/audio"

// ToRate returns buf resampled to rate. The input is returned unchanged
// when the rates already match.
func ToRate(buf audio.Buffer, rate int) audio.Buffer {
	channels := buf.Format.Channels
	if rate <= 0 || channels <= 0 || buf.Format.SampleRate == rate || len(buf.Samples) == 0 {
		return buf
	}

	r := New(buf.Format.SampleRate, rate, channels)

	// One spare frame absorbs rounding in the output estimate
	out := make([]int32, r.OutputSamplesNeeded(len(buf.Samples))+channels)
	n := r.Resample(buf.Samples, out)

	format := buf.Format
	format.SampleRate = rate
	return audio.Buffer{Samples: out[:n], Format: format}
}

// ToChannels converts buf to the given channel count. Mono is duplicated
// into every output channel; multichannel input is averaged down to mono
// or truncated to the first channels otherwise.
func ToChannels(buf audio.Buffer, channels int) audio.Buffer {
	in := buf.Format.Channels
	if channels <= 0 || in <= 0 || in == channels {
		return buf
	}

	frames := buf.Frames()
	out := make([]int32, frames*channels)

	for f := 0; f < frames; f++ {
		src := buf.Samples[f*in : (f+1)*in]
		dst := out[f*channels : (f+1)*channels]

		switch {
		case in == 1:
			for ch := range dst {
				dst[ch] = src[0]
			}
		case channels == 1:
			var sum int64
			for _, s := range src {
				sum += int64(s)
			}
			dst[0] = int32(sum / int64(in))
		default:
			for ch := range dst {
				if ch < in {
					dst[ch] = src[ch]
				}
			}
		}
	}

	format := buf.Format
	format.Channels = channels
	return audio.Buffer{Samples: out, Format: format}
}
