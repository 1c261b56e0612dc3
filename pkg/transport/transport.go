// ABOUTME: Source and Opener contracts plus the transport error type
// ABOUTME: Selects an opener by transport name
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Transport names accepted by New
const (
	KindHTTP      = "http"
	KindWebSocket = "ws"
)

// DefaultBufferSize is the read size for stream-oriented sources
const DefaultBufferSize = 32 * 1024

// Source is a pull-based response stream
type Source interface {
	// Read blocks until the next buffer arrives. It returns io.EOF once
	// the stream is complete.
	Read(ctx context.Context) ([]byte, error)

	// Close releases the underlying connection; a pending Read fails
	Close() error
}

// Opener sends a request body and returns the response stream
type Opener interface {
	Open(ctx context.Context, body []byte) (Source, error)
}

// Error is a transport failure; it aborts the turn
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the opener for kind. client is used by the HTTP transport
// and may be nil.
func New(kind, endpoint string, client *http.Client) (Opener, error) {
	switch strings.ToLower(kind) {
	case "", KindHTTP:
		return NewHTTP(endpoint, client), nil
	case KindWebSocket, "websocket":
		return NewWebSocket(WebSocketURL(endpoint)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (supported: http, ws)", kind)
	}
}

// WebSocketURL maps an http(s) voice endpoint to its ws(s) counterpart,
// appending /ws. Endpoints that are already ws URLs are returned as is.
func WebSocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/") + "/ws"
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/") + "/ws"
	default:
		return endpoint
	}
}
