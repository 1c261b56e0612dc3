// ABOUTME: Tests for Prometheus metrics
// ABOUTME: Tests recorder methods and the /metrics handler
package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/chatterbox"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ chatterbox.Recorder = (*Metrics)(nil)

func TestRecorder(t *testing.T) {
	m := New()

	m.TurnStarted()
	m.BytesReceived(100)
	m.BytesReceived(28)
	m.EventDecoded("AudioSegmentReady")
	m.EventDecoded("AudioSegmentReady")
	m.EventDecoded("UserMessage")
	m.FirstAudio(120 * time.Millisecond)
	m.SegmentPlayed()
	m.SegmentFailed()
	m.TurnFinished(chatterbox.OutcomeComplete, 2*time.Second)

	if got := testutil.ToFloat64(m.TurnsStarted); got != 1 {
		t.Errorf("expected 1 turn started, got %v", got)
	}
	if got := testutil.ToFloat64(m.TurnsFinished.WithLabelValues(chatterbox.OutcomeComplete)); got != 1 {
		t.Errorf("expected 1 completed turn, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamBytes); got != 128 {
		t.Errorf("expected 128 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Events.WithLabelValues("AudioSegmentReady")); got != 2 {
		t.Errorf("expected 2 segment events, got %v", got)
	}
	if got := testutil.ToFloat64(m.SegmentsPlayed); got != 1 {
		t.Errorf("expected 1 segment played, got %v", got)
	}
	if got := testutil.ToFloat64(m.SegmentsFailed); got != 1 {
		t.Errorf("expected 1 segment failed, got %v", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.SegmentPlayed()
	if got := testutil.ToFloat64(b.SegmentsPlayed); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest(http.MethodPost, "/voice", http.StatusOK, 300*time.Millisecond)
	m.RoundsWritten.Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	for _, want := range []string{
		`chatterbox_http_requests_total{endpoint="/voice",method="POST",status_code="200"} 1`,
		"chatterbox_server_rounds_total 3",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
