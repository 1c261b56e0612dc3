// ABOUTME: Turn tracking and TUI update helpers for the server
// ABOUTME: Keeps a snapshot of active turns and pushes it to the TUI
package server

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// session tracks one turn while the backend answers it
type session struct {
	id        string
	remote    string
	transport string
	query     string
	rounds    int
	started   time.Time
}

func (s *Server) openSession(remote, transport string) *session {
	sess := &session{
		id:        uuid.New().String(),
		remote:    remote,
		transport: transport,
		started:   time.Now(),
	}

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	s.updateTUI()
	return sess
}

func (s *Server) closeSession(sess *session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	s.served++
	s.sessionsMu.Unlock()

	s.updateTUI()
}

func (s *Server) sessionRound(sess *session, round Round) {
	s.sessionsMu.Lock()
	sess.rounds++
	s.rounds++
	if round.Query != "" {
		sess.query = round.Query
	}
	s.sessionsMu.Unlock()

	s.updateTUI()
}

// Status returns a snapshot of the server state
func (s *Server) Status() ServerStatus {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	sessions := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, SessionInfo{
			ID:        sess.id,
			Remote:    sess.remote,
			Transport: sess.transport,
			Query:     sess.query,
			Rounds:    sess.rounds,
			Elapsed:   time.Since(sess.started),
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Elapsed > sessions[j].Elapsed
	})

	status := ServerStatus{
		Name:     s.config.Name,
		Addr:     s.config.Addr,
		Layout:   s.config.Layout.Name,
		Sessions: sessions,
		Served:   s.served,
		Rounds:   s.rounds,
	}
	if s.listener != nil {
		status.Addr = s.listener.Addr().String()
	}
	return status
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.Status())
}
