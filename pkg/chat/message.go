// ABOUTME: Chat message and voice request types
// ABOUTME: History adaptation and JSON request encoding
package chat

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults for a voice assistant
const (
	DefaultName         = "assistant"
	DefaultSenderName   = "user"
	DefaultSystemPrompt = "You are a helpful assistant. You are embodied in a virtual reality, and receive queries from other inhabitants. Keep your answers short, suitable for a spoken conversation."
)

// Message is one chat history entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// System returns a system prompt message
func System(prompt string) Message {
	return Message{Role: RoleSystem, Content: prompt}
}

// AdaptHistory returns a copy of history as seen by the assistant named
// self: other assistants' messages become user messages under their own
// name, and the first entry is replaced by the system prompt.
func AdaptHistory(history []Message, self, systemPrompt string) []Message {
	adapted := make([]Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == RoleAssistant && m.Name != self {
			adapted = append(adapted, Message{Role: RoleUser, Content: m.Content, Name: m.Name})
			continue
		}
		adapted = append(adapted, m)
	}

	if len(adapted) == 0 {
		return append(adapted, System(systemPrompt))
	}
	adapted[0] = System(systemPrompt)
	return adapted
}

// Request is the body POSTed to the voice endpoint
type Request struct {
	Chat         []Message `json:"chat"`
	Input        string    `json:"input"`
	ChatModel    string    `json:"chatModel"`
	STTModel     string    `json:"sttModel"`
	TTSModel     string    `json:"ttsModel"`
	Voice        string    `json:"voice"`
	SpeakerName  string    `json:"speakerName"`
	OutputFormat string    `json:"outputFormat"`
}

// SetAudio stores recorded audio as the base64 request input
func (r *Request) SetAudio(audio []byte) {
	r.Input = base64.StdEncoding.EncodeToString(audio)
}

// Audio decodes the base64 request input
func (r *Request) Audio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(r.Input)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 input: %w", err)
	}
	return data, nil
}

// LastUserMessage returns the newest user entry in the chat, if any
func (r *Request) LastUserMessage() (Message, bool) {
	for i := len(r.Chat) - 1; i >= 0; i-- {
		if r.Chat[i].Role == RoleUser {
			return r.Chat[i], true
		}
	}
	return Message{}, false
}

// Marshal encodes the request as JSON
func (r *Request) Marshal() ([]byte, error) {
	data, err := sonic.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return data, nil
}

// ParseRequest decodes a JSON voice request
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}
