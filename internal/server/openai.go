// ABOUTME: OpenAI backend: whisper transcription, streamed chat and TTS
// ABOUTME: Voices the streamed reply sentence by sentence
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/sashabaranov/go-openai"
)

// Fallbacks for requests that leave the models unset
const (
	defaultChatModel    = openai.GPT3Dot5Turbo
	defaultSTTModel     = openai.Whisper1
	defaultTTSModel     = "tts-1"
	defaultVoice        = "nova"
	defaultOutputFormat = "mp3"
)

// OpenAIBackend answers requests through the OpenAI API
type OpenAIBackend struct {
	client *openai.Client
	debug  bool
}

// NewOpenAIClient creates an API client; baseURL overrides the public API
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewOpenAIBackend creates a backend using client
func NewOpenAIBackend(client *openai.Client, debug bool) *OpenAIBackend {
	return &OpenAIBackend{client: client, debug: debug}
}

// Respond transcribes the input, streams the chat reply and voices every
// completed sentence as soon as it arrives
func (b *OpenAIBackend) Respond(ctx context.Context, req *chat.Request, emit func(Round) error) error {
	query, err := b.transcribe(ctx, req)
	if err != nil {
		return err
	}
	if query == "" {
		return emit(Round{})
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Chat)+1)
	for _, msg := range req.Chat {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    sanitizeName(msg.Name),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: query,
		Name:    sanitizeName(req.SpeakerName),
	})

	stream, err := b.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    orDefault(req.ChatModel, defaultChatModel),
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to start chat completion: %w", err)
	}
	defer stream.Close()

	var split sentenceSplitter
	index := 0
	speak := func(sentence string) error {
		data, err := b.speak(ctx, req, sentence)
		if err != nil {
			return err
		}
		round := sentenceRound(query, sentence, index, data)
		index++
		return emit(round)
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("chat stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		for _, sentence := range split.Add(resp.Choices[0].Delta.Content) {
			if err := speak(sentence); err != nil {
				return err
			}
		}
	}

	if rest := split.Flush(); rest != "" {
		if err := speak(rest); err != nil {
			return err
		}
	}

	// The query still reaches the client when the reply is empty
	if index == 0 {
		return emit(Round{Query: query})
	}
	return nil
}

// transcribe runs speech to text on the recorded input. Requests without
// audio fall back to the last typed user message.
func (b *OpenAIBackend) transcribe(ctx context.Context, req *chat.Request) (string, error) {
	data, err := req.Audio()
	if err != nil {
		return "", fmt.Errorf("invalid input audio: %w", err)
	}
	if len(data) == 0 {
		if msg, ok := req.LastUserMessage(); ok {
			return msg.Content, nil
		}
		return "", nil
	}

	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    orDefault(req.STTModel, defaultSTTModel),
		FilePath: inputFileName(data),
		Reader:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	if b.debug {
		log.Printf("[debug] transcribed %d bytes: %q", len(data), resp.Text)
	}
	return resp.Text, nil
}

// speak synthesizes one sentence in the requested output format
func (b *OpenAIBackend) speak(ctx context.Context, req *chat.Request, sentence string) ([]byte, error) {
	resp, err := b.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(orDefault(req.TTSModel, defaultTTSModel)),
		Input:          sentence,
		Voice:          openai.SpeechVoice(orDefault(req.Voice, defaultVoice)),
		ResponseFormat: openai.SpeechResponseFormat(orDefault(req.OutputFormat, defaultOutputFormat)),
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}
	return data, nil
}

// inputFileName names the upload so the API can tell the container
func inputFileName(data []byte) string {
	switch audio.SniffCodec(data) {
	case audio.CodecWAV:
		return "input.wav"
	case audio.CodecMP3:
		return "input.mp3"
	case audio.CodecOpus:
		return "input.ogg"
	case audio.CodecFLAC:
		return "input.flac"
	default:
		return "input.webm"
	}
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// sanitizeName maps a speaker name onto the characters the API accepts
func sanitizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
