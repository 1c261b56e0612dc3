// ABOUTME: Byte-stream sources for the voice response body
// ABOUTME: HTTP streaming bodies, WebSocket binary messages and plain readers
// Package transport delivers a turn's response as successive byte buffers.
//
// An Opener sends the serialized request and returns a Source. Each
// Source.Read returns the next buffer as it arrives, io.EOF at the end
// of the stream and a *Error for network failures. Only one Read may be
// outstanding at a time.
//
// Example:
//
//	opener, err := transport.New("http", "http://localhost:8000/voice", nil)
//	src, err := opener.Open(ctx, body)
//	defer src.Close()
//	for {
//		buf, err := src.Read(ctx)
//		if err == io.EOF {
//			break
//		}
//		...
//	}
package transport
