// ABOUTME: Offline tone backend
// ABOUTME: Answers with a canned reply, voicing each sentence as a sine tone
package server

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/audio/encode"
	"github.com/harperreed/chatterbox-go/pkg/chat"
)

const (
	// DefaultToneSampleRate matches the client's raw PCM default
	DefaultToneSampleRate = 24000

	defaultWordDuration = 120 * time.Millisecond
	minToneDuration     = 200 * time.Millisecond
	maxToneDuration     = 3 * time.Second
	fadeDuration        = 10 * time.Millisecond
)

// One note per sentence: A4, B4, C#5, E5
var toneFrequencies = []float64{440.0, 493.88, 554.37, 659.25}

// ToneBackend answers without any network service
type ToneBackend struct {
	// Reply builds the answer text for a query
	Reply func(query string) string

	SampleRate   int
	WordDuration time.Duration
}

// NewToneBackend creates a tone backend with the canned reply
func NewToneBackend() *ToneBackend {
	return &ToneBackend{
		Reply:        cannedReply,
		SampleRate:   DefaultToneSampleRate,
		WordDuration: defaultWordDuration,
	}
}

func cannedReply(query string) string {
	if query == "" {
		return "I didn't catch that. Could you say it again?"
	}
	return fmt.Sprintf("I received %s. This is the offline tone backend. Every sentence you hear is a short tone.", query)
}

// Respond voices each sentence of the reply as one round
func (b *ToneBackend) Respond(ctx context.Context, req *chat.Request, emit func(Round) error) error {
	query, err := describeInput(req)
	if err != nil {
		return err
	}

	enc, err := b.encoder(req.OutputFormat)
	if err != nil {
		return err
	}
	defer enc.Close()

	sentences := SplitSentences(b.Reply(query))
	if len(sentences) == 0 {
		return emit(Round{Query: query})
	}

	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := enc.Encode(b.tone(sentence, i))
		if err != nil {
			return fmt.Errorf("failed to encode tone: %w", err)
		}
		if err := emit(sentenceRound(query, sentence, i, data)); err != nil {
			return err
		}
	}

	return nil
}

// encoder honours pcm and opus requests and falls back to WAV
func (b *ToneBackend) encoder(outputFormat string) (encode.Encoder, error) {
	format := audio.Format{
		Codec:      audio.CodecWAV,
		SampleRate: b.SampleRate,
		Channels:   1,
		BitDepth:   16,
	}
	switch outputFormat {
	case audio.CodecPCM:
		format.Codec = audio.CodecPCM
		return encode.NewPCM(format)
	case audio.CodecOpus:
		format.Codec = audio.CodecOpus
		return encode.NewOpus(format)
	}
	return encode.NewWAV(format)
}

// tone generates a mono sine whose length follows the sentence's word count
func (b *ToneBackend) tone(sentence string, index int) []int32 {
	d := time.Duration(len(strings.Fields(sentence))) * b.WordDuration
	d = min(max(d, minToneDuration), maxToneDuration)

	frequency := toneFrequencies[index%len(toneFrequencies)]
	n := int(d * time.Duration(b.SampleRate) / time.Second)
	fade := int(fadeDuration * time.Duration(b.SampleRate) / time.Second)

	samples := make([]int32, n)
	for i := range samples {
		t := float64(i) / float64(b.SampleRate)
		sample := math.Sin(2 * math.Pi * frequency * t)

		// Ramp the edges to avoid clicks between segments
		gain := 0.5 // 50% volume
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if n-i < fade {
			gain *= float64(n-i) / float64(fade)
		}

		samples[i] = int32(sample * gain * audio.Max24Bit)
	}

	return samples
}
