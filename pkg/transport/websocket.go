// ABOUTME: WebSocket transport
// ABOUTME: Sends the request as a text message and reads binary response messages
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOpener dials a voice endpoint for each turn
type WebSocketOpener struct {
	URL    string
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebSocket creates a WebSocket opener using the default dialer
func NewWebSocket(url string) *WebSocketOpener {
	return &WebSocketOpener{URL: url, Dialer: websocket.DefaultDialer}
}

// Open dials, sends body as one text message and returns the stream
func (o *WebSocketOpener) Open(ctx context.Context, body []byte) (Source, error) {
	conn, resp, err := o.Dialer.DialContext(ctx, o.URL, o.Header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &Error{Op: "dial", StatusCode: status, Err: err}
	}

	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		conn.Close()
		return nil, &Error{Op: "write", Err: err}
	}

	return &wsSource{conn: conn}, nil
}

type wsSource struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// Read returns the next binary message. A normal close ends the stream;
// a text message carries a server-side error.
func (s *wsSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Unblock ReadMessage when the turn is cancelled
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil, io.EOF
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &Error{Op: "read", Err: err}
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			return data, nil
		case websocket.TextMessage:
			return nil, &Error{Op: "read", Err: fmt.Errorf("server error: %s", data)}
		}
	}
}

func (s *wsSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Best effort; the peer may already be gone
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
