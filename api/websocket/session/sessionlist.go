package session

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrUnknownSession = errors.New("session is not registered")

// SessionList tracks the renderers currently attached to the push server.
type SessionList struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionList() *SessionList {
	return &SessionList{sessions: make(map[string]*Session)}
}

// Open wraps conn in a session and registers it.
func (sl *SessionList) Open(conn *websocket.Conn) (*Session, error) {
	s, err := newSession(conn)
	if err != nil {
		return nil, err
	}

	sl.mu.Lock()
	_, dup := sl.sessions[s.ID()]
	if !dup {
		sl.sessions[s.ID()] = s
	}
	sl.mu.Unlock()

	if dup {
		s.close()
		return nil, errors.New("duplicate session id " + s.ID())
	}
	return s, nil
}

// Close unregisters s and shuts its connection. Closing a session twice
// returns ErrUnknownSession.
func (sl *SessionList) Close(s *Session) error {
	if s == nil {
		return ErrUnknownSession
	}

	sl.mu.Lock()
	registered := sl.sessions[s.ID()] == s
	if registered {
		delete(sl.sessions, s.ID())
	}
	sl.mu.Unlock()

	if !registered {
		return ErrUnknownSession
	}
	s.close()
	return nil
}

func (sl *SessionList) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.sessions)
}

// Each calls visit for every open session. visit must not call Open or
// Close.
func (sl *SessionList) Each(visit func(*Session)) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	for _, s := range sl.sessions {
		visit(s)
	}
}
