// ABOUTME: Tests for history adaptation, request encoding and stores
// ABOUTME: Redis tests run only when CHATTERBOX_TEST_REDIS names a server
package chat

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestAdaptHistory(t *testing.T) {
	history := []Message{
		System("old prompt"),
		{Role: RoleUser, Content: "hi all", Name: "alice"},
		{Role: RoleAssistant, Content: "hello alice", Name: "bob"},
		{Role: RoleAssistant, Content: "hey", Name: "assistant"},
		{Role: RoleAssistant, Content: "", Name: ""},
	}

	got := AdaptHistory(history, "assistant", "new prompt")

	want := []Message{
		{Role: RoleSystem, Content: "new prompt"},
		{Role: RoleUser, Content: "hi all", Name: "alice"},
		{Role: RoleUser, Content: "hello alice", Name: "bob"},
		{Role: RoleAssistant, Content: "hey", Name: "assistant"},
		{Role: RoleUser, Content: ""},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	// The input is untouched
	if history[0].Content != "old prompt" || history[2].Role != RoleAssistant {
		t.Error("AdaptHistory modified its input")
	}
}

func TestAdaptHistoryEmpty(t *testing.T) {
	got := AdaptHistory(nil, DefaultName, DefaultSystemPrompt)
	if len(got) != 1 || got[0].Role != RoleSystem || got[0].Content != DefaultSystemPrompt {
		t.Errorf("expected only the system prompt, got %+v", got)
	}
}

func TestRequestJSONKeys(t *testing.T) {
	req := &Request{
		Chat:         []Message{System("be brief")},
		ChatModel:    "gpt-3.5-turbo",
		STTModel:     "whisper-1",
		TTSModel:     "tts-1",
		Voice:        "nova",
		SpeakerName:  "user",
		OutputFormat: "mp3",
	}
	req.SetAudio([]byte{0xde, 0xad})

	data, err := req.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"chat", "input", "chatModel", "sttModel", "ttsModel", "voice", "speakerName", "outputFormat"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if fields["input"] != "3q0=" {
		t.Errorf("expected base64 input, got %v", fields["input"])
	}

	chat := fields["chat"].([]any)
	if _, hasName := chat[0].(map[string]any)["name"]; hasName {
		t.Error("empty name should be omitted")
	}

	parsed, err := ParseRequest(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	audio, err := parsed.Audio()
	if err != nil || len(audio) != 2 || audio[0] != 0xde {
		t.Errorf("unexpected audio %v (%v)", audio, err)
	}
}

func TestParseRequestInvalid(t *testing.T) {
	if _, err := ParseRequest([]byte("{nope")); err == nil {
		t.Error("expected error for invalid JSON")
	}

	req := &Request{Input: "***"}
	if _, err := req.Audio(); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestLastUserMessage(t *testing.T) {
	req := &Request{Chat: []Message{
		System("p"),
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second", Name: "carol"},
		{Role: RoleAssistant, Content: "reply"},
	}}

	m, ok := req.LastUserMessage()
	if !ok || m.Content != "second" || m.Name != "carol" {
		t.Errorf("unexpected last user message %+v", m)
	}

	if _, ok := (&Request{}).LastUserMessage(); ok {
		t.Error("expected no user message in empty chat")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(System("p"))

	if err := store.Append(ctx, Message{Role: RoleUser, Content: "a"}, Message{Role: RoleAssistant, Content: "b"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	msgs, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(msgs) != 3 || msgs[2].Content != "b" {
		t.Fatalf("unexpected history %+v", msgs)
	}

	// Loaded slices are copies
	msgs[0].Content = "changed"
	again, _ := store.Load(ctx)
	if again[0].Content != "p" {
		t.Error("Load should return a copy")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CHATTERBOX_TEST_REDIS")
	if addr == "" {
		t.Skip("CHATTERBOX_TEST_REDIS not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store := NewRedisStore(client, "chatterbox:test:"+uuid.New().String())
	defer store.Clear(ctx)

	if err := store.Append(ctx, System("p"), Message{Role: RoleAssistant, Content: "hi", Name: "bob"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	msgs, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Name != "bob" {
		t.Errorf("unexpected history %+v", msgs)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	store := NewRedisStore(client, "chatterbox:test")
	if _, err := store.Load(context.Background()); err == nil {
		t.Error("expected error from unreachable server")
	}
	if err := store.Append(context.Background(), System("p")); err == nil {
		t.Error("expected error from unreachable server")
	}
}
