// ABOUTME: Tests for client application orchestration
// ABOUTME: Runs turns against an in-process tone server
package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/chatterbox-go/internal/config"
	"github.com/harperreed/chatterbox-go/internal/server"
	"github.com/harperreed/chatterbox-go/internal/version"
	"github.com/harperreed/chatterbox-go/pkg/audio/output"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func toneServer(t *testing.T) string {
	t.Helper()
	s, err := server.New(server.Config{Name: "test", Backend: server.NewToneBackend()})
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL + server.VoicePath
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func testSettings(endpoint string) *config.Config {
	settings := config.Default()
	settings.Client.Endpoint = endpoint
	settings.Chat.OutputFormat = "wav"
	settings.Playback.Output = "null"
	return settings
}

func TestClientSendsInputs(t *testing.T) {
	settings := testSettings(toneServer(t))
	out := output.NewNull(false)

	c := New(Config{
		Settings: settings,
		Inputs:   []string{writeInput(t, "a.raw", "first"), writeInput(t, "b.raw", "second!")},
		Output:   out,
	})
	defer c.Stop()

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	history, err := c.History(t.Context())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected system plus two exchanges, got %d messages", len(history))
	}
	if history[1].Content != "[unknown audio, 5 bytes]" || history[3].Content != "[unknown audio, 7 bytes]" {
		t.Errorf("unexpected user messages: %q %q", history[1].Content, history[3].Content)
	}
	if history[4].Role != chat.RoleAssistant || history[4].Name != chat.DefaultName {
		t.Errorf("expected assistant reply last, got %+v", history[4])
	}

	if out.Written() == 0 {
		t.Error("expected audio written")
	}
	if got := testutil.ToFloat64(c.metrics.TurnsStarted); got != 2 {
		t.Errorf("expected 2 turns started, got %v", got)
	}
}

func TestClientSendWrapsAround(t *testing.T) {
	c := New(Config{
		Settings: testSettings(toneServer(t)),
		Inputs:   []string{writeInput(t, "a.raw", "abc")},
		Output:   output.NewNull(false),
	})
	defer c.Stop()

	if err := c.setup(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err := c.SendNext(t.Context())
		if err != nil {
			t.Fatalf("SendNext %d failed: %v", i, err)
		}
		if result.UserMessage != "[unknown audio, 3 bytes]" {
			t.Errorf("unexpected user message: %q", result.UserMessage)
		}
	}
}

func TestClientNoInputs(t *testing.T) {
	c := New(Config{Settings: testSettings(toneServer(t)), Output: output.NewNull(false)})
	defer c.Stop()

	if err := c.Start(); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
}

func TestClientMissingInput(t *testing.T) {
	c := New(Config{
		Settings: testSettings("http://127.0.0.1:1/voice"),
		Inputs:   []string{filepath.Join(t.TempDir(), "missing.wav")},
		Output:   output.NewNull(false),
	})
	defer c.Stop()

	if err := c.Start(); err == nil || !strings.Contains(err.Error(), "failed to read input") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestClientRequiresEndpoint(t *testing.T) {
	c := New(Config{Settings: testSettings(""), Output: output.NewNull(false)})
	defer c.Stop()

	if err := c.Start(); err == nil {
		t.Error("expected error without endpoint or discovery")
	}
}

func TestClientSegmentsDir(t *testing.T) {
	settings := testSettings(toneServer(t))
	settings.Client.SegmentsDir = filepath.Join(t.TempDir(), "segments")

	c := New(Config{
		Settings: settings,
		Inputs:   []string{writeInput(t, "a.raw", "abc")},
		Output:   output.NewNull(false),
	})
	defer c.Stop()

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := os.Stat(settings.Client.SegmentsDir); err != nil {
		t.Errorf("expected segments dir to exist: %v", err)
	}
}

func TestUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &userAgent{base: http.DefaultTransport}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != version.UserAgent() {
		t.Errorf("expected %s, got %s", version.UserAgent(), got)
	}
}

func TestNewOutput(t *testing.T) {
	if _, ok := newOutput("null").(*output.Null); !ok {
		t.Error("expected null output")
	}
	if _, ok := newOutput("oto").(*output.Oto); !ok {
		t.Error("expected oto output")
	}
}
