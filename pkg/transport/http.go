// ABOUTME: HTTP streaming transport
// ABOUTME: POSTs the request and reads the chunked response body incrementally
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HTTPOpener posts JSON requests to a voice endpoint
type HTTPOpener struct {
	URL        string
	Client     *http.Client
	BufferSize int
}

// NewHTTP creates an HTTP opener; a nil client means http.DefaultClient
func NewHTTP(url string, client *http.Client) *HTTPOpener {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOpener{URL: url, Client: client, BufferSize: DefaultBufferSize}
}

// Open sends body and returns the response stream once headers arrive
func (o *HTTPOpener) Open(ctx context.Context, body []byte) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &Error{Op: "post", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &Error{
			Op:         "post",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(msg)),
		}
	}

	return NewReaderSource(resp.Body, o.BufferSize), nil
}

// ReaderSource adapts an io.Reader to Source
type ReaderSource struct {
	r   io.Reader
	buf []byte
}

// maxEmptyReads bounds consecutive (0, nil) reads before giving up
const maxEmptyReads = 100

// NewReaderSource reads r in buffers of up to size bytes. If r is an
// io.Closer it is closed by Close.
func NewReaderSource(r io.Reader, size int) *ReaderSource {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &ReaderSource{r: r, buf: make([]byte, size)}
}

// Read returns the next buffer, io.EOF at end of stream
func (s *ReaderSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := 0; i < maxEmptyReads; i++ {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			// Data first; the error resurfaces on the next call
			return bytes.Clone(s.buf[:n]), nil
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &Error{Op: "read", Err: err}
		}
	}
	return nil, &Error{Op: "read", Err: io.ErrNoProgress}
}

// Close closes the underlying reader when it supports it
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
