package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hyperjump/pdfscope/internal/render"
	"github.com/hyperjump/pdfscope/internal/viewer"
)

// SessionFactory creates a viewer session rendered in mode and the function releasing it.
type SessionFactory func(mode render.Mode) (*viewer.Session, func())

type sessionEntry struct {
	session *viewer.Session
	mode    render.Mode
	release func()
}

// Sessions is the registry of live viewer sessions, keyed by random id.
type Sessions struct {
	factory SessionFactory

	mu      sync.RWMutex
	entries map[string]sessionEntry
}

// NewSessions creates an empty registry.
func NewSessions(factory SessionFactory) *Sessions {
	return &Sessions{factory: factory, entries: make(map[string]sessionEntry)}
}

// Create starts a new session rendered in mode and returns its id.
func (s *Sessions) Create(mode render.Mode) (string, *viewer.Session) {
	sess, release := s.factory(mode)
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = sessionEntry{session: sess, mode: mode, release: release}
	s.mu.Unlock()
	return id, sess
}

// Get returns the session with id.
func (s *Sessions) Get(id string) (*viewer.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.session, ok
}

// Mode returns the render mode of the session with id.
func (s *Sessions) Mode(id string) (render.Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.mode, ok
}

// Delete releases and forgets the session with id.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if ok && e.release != nil {
		e.release()
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CloseAll releases every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]sessionEntry)
	s.mu.Unlock()
	for _, e := range entries {
		if e.release != nil {
			e.release()
		}
	}
}
