package app

import (
	"context"
	"sync"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Code        domain.RoomCode
	Conn        core.SignalConnection
	Cancel      context.CancelFunc
	ClientToken string
}

// Sessions maps live socket sessions to their transport and the room they are bound to.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (s *Sessions) Bind(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc, clientToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel, ClientToken: clientToken}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("bound session")
}

func (s *Sessions) Get(sid core.SessionID) (core.SignalConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[sid]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (s *Sessions) ClientToken(sid core.SessionID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[sid]; ok {
		return e.ClientToken
	}
	return ""
}

func (s *Sessions) Unbind(sid core.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("unbind session")
}

// RoomOf returns the room sid is attached to, if any.
func (s *Sessions) RoomOf(sid core.SessionID) (domain.RoomCode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sid]
	if !ok || e.Code == "" {
		return "", false
	}
	return e.Code, true
}

func (s *Sessions) Attach(sid core.SessionID, code domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return false
	}
	e.Code = code
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(code)).Msg("attached to room")
	return true
}

// DetachFrom clears the room binding if it still points at code. A session that
// already moved on to another room keeps its new binding.
func (s *Sessions) DetachFrom(sid core.SessionID, code domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok || e.Code != code {
		return false
	}
	e.Code = ""
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(code)).Msg("detached from room")
	return true
}

// InRoom lists sessions currently attached to code.
func (s *Sessions) InRoom(code domain.RoomCode) []core.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SessionID, 0)
	for sid, e := range s.sessions {
		if e.Code == code {
			out = append(out, sid)
		}
	}
	return out
}

func (s *Sessions) Cancel(sid core.SessionID) bool {
	s.mu.RLock()
	e, ok := s.sessions[sid]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
