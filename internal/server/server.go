// ABOUTME: Reference voice server
// ABOUTME: Streams backend rounds over chunked HTTP and WebSocket
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/chatterbox-go/internal/discovery"
	"github.com/harperreed/chatterbox-go/internal/metrics"
	"github.com/harperreed/chatterbox-go/internal/version"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/wire"
)

const (
	// VoicePath serves POST requests; VoicePath+"/ws" upgrades to WebSocket
	VoicePath = "/voice"

	// DefaultMaxRequestBytes bounds a request body, base64 audio included
	DefaultMaxRequestBytes = 32 << 20

	requestReadTimeout = 30 * time.Second
)

// Config holds server configuration
type Config struct {
	Addr      string
	Name      string
	Advertise bool
	Debug     bool

	Backend Backend
	Layout  wire.Layout

	// Metrics are served on /metrics when set
	Metrics *metrics.Metrics

	// UseTUI shows the status dashboard while serving
	UseTUI bool

	MaxRequestBytes int64
}

// Server represents the voice server
type Server struct {
	config   Config
	serverID string

	// WebSocket upgrader
	upgrader websocket.Upgrader

	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener

	// mDNS discovery
	mdnsManager *discovery.Manager

	// Active turns
	sessionsMu sync.RWMutex
	sessions   map[string]*session
	served     int
	rounds     int

	tui *ServerTUI

	// Control
	stopChan chan struct{}
	stopOnce  sync.Once
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if config.Layout == (wire.Layout{}) {
		config.Layout = wire.LayoutV1
	}
	if err := config.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	if config.Addr == "" {
		config.Addr = ":8000"
	}
	if config.Name == "" {
		config.Name = "chatterbox"
	}
	if config.MaxRequestBytes <= 0 {
		config.MaxRequestBytes = DefaultMaxRequestBytes
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Voice clients are not browsers; any origin is accepted
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
		stopChan: make(chan struct{}),
		ready:    make(chan struct{}),
	}

	s.mux.HandleFunc("POST "+VoicePath, s.withMetrics(VoicePath, s.handleVoice))
	s.mux.HandleFunc("GET "+VoicePath+"/ws", s.withMetrics(VoicePath+"/ws", s.handleWebSocket))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %s\n", version.Version)
	})
	if config.Metrics != nil {
		s.mux.Handle("GET /metrics", config.Metrics.Handler())
	}

	return s, nil
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.markReady()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)
	log.Printf("Voice endpoint listening on %s%s (layout %s)", ln.Addr(), VoicePath, s.config.Layout.Name)

	if s.config.Advertise {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        ln.Addr().(*net.TCPAddr).Port,
			Path:        VoicePath,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.markReady()

	if s.config.UseTUI {
		s.startTUI()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	if s.tui != nil {
		s.tui.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// startTUI runs the dashboard; quitting it stops the server
func (s *Server) startTUI() {
	s.tui = NewServerTUI()
	go func() {
		if err := s.tui.Start(s.Status()); err != nil {
			log.Printf("TUI error: %v", err)
		}
	}()
	go func() {
		select {
		case <-s.tui.QuitChan():
			log.Printf("Quit requested from TUI")
			s.Stop()
		case <-s.stopChan:
		}
	}()
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Addr returns the listening address once Start is serving, or nil
// when Start failed to listen
func (s *Server) Addr() net.Addr {
	<-s.ready
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// handleVoice streams the response over a chunked HTTP body, one flush per round
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxRequestBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request: %v", err), http.StatusRequestEntityTooLarge)
		return
	}

	req, err := chat.ParseRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Wire-Layout", s.config.Layout.Name)
	w.Header().Set("Server", version.UserAgent())

	flusher, _ := w.(http.Flusher)
	writer := wire.NewWriter(w, s.config.Layout)

	sess := s.openSession(r.RemoteAddr, "http")
	defer s.closeSession(sess)

	err = s.config.Backend.Respond(r.Context(), req, func(round Round) error {
		if err := writer.WriteRound(round.Query, round.Text, round.Audio); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		s.roundWritten(sess, round)
		return nil
	})
	if err == nil {
		return
	}

	log.Printf("Response failed after %d rounds: %v", writer.Rounds(), err)
	if writer.Rounds() == 0 {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	// Abort the connection so the client sees a broken stream, not a short one
	panic(http.ErrAbortHandler)
}

// handleWebSocket reads one text request and writes each round as a binary message
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, http.Header{"Server": []string{version.UserAgent()}})
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.config.Debug {
		log.Printf("[debug] New WebSocket connection from %s", r.RemoteAddr)
	}

	conn.SetReadLimit(s.config.MaxRequestBytes)
	conn.SetReadDeadline(time.Now().Add(requestReadTimeout))

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading request: %v", err)
		return
	}
	if msgType != websocket.TextMessage {
		s.closeWithError(conn, fmt.Errorf("expected a text request, got message type %d", msgType))
		return
	}

	req, err := chat.ParseRequest(data)
	if err != nil {
		s.closeWithError(conn, err)
		return
	}

	// Watch for the client going away so the backend stops early
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sess := s.openSession(r.RemoteAddr, "ws")
	defer s.closeSession(sess)

	rounds := 0
	err = s.config.Backend.Respond(ctx, req, func(round Round) error {
		buf, err := s.config.Layout.AppendRound(nil, round.Query, round.Text, round.Audio)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			return fmt.Errorf("write round %d: %w", rounds, err)
		}
		rounds++
		s.roundWritten(sess, round)
		return nil
	})
	if err != nil {
		log.Printf("Response failed after %d rounds: %v", rounds, err)
		s.closeWithError(conn, err)
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Printf("Error closing WebSocket: %v", err)
	}
}

// closeWithError reports err as a text message, then closes the connection
func (s *Server) closeWithError(conn *websocket.Conn, err error) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(err.Error()))
	msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (s *Server) roundWritten(sess *session, round Round) {
	s.sessionRound(sess, round)
	if s.config.Metrics != nil {
		s.config.Metrics.RoundsWritten.Inc()
	}
	if s.config.Debug {
		log.Printf("[debug] wrote round: query=%d text=%d audio=%d bytes", len(round.Query), len(round.Text), len(round.Audio))
	}
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *Server) withMetrics(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	if s.config.Metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			s.config.Metrics.RecordHTTPRequest(r.Method, endpoint, rec.status, time.Since(start))
		}()
		next(rec, r)
	}
}

// statusRecorder captures the response status while keeping streaming
// and connection hijacking available
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
