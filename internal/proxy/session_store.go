package proxy

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"resimages/resimg"
)

// session keeps a rewritten document so later requests can refresh it.
type session struct {
	mu       sync.Mutex
	doc      *resimg.Document
	binder   *resimg.Binder
	targets  []resimg.Element
	viewport resimg.Viewport
}

type sessionEntry struct {
	sess      *session
	expiresAt time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	ttl      time.Duration
	clock    func() time.Time
}

func newSessionStore(clock func() time.Time, ttl time.Duration) *sessionStore {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionStore{sessions: make(map[string]sessionEntry), ttl: ttl, clock: clock}
}

// get returns a live session and extends its lifetime.
func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.clock()
	if now.After(e.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	e.expiresAt = now.Add(s.ttl)
	s.sessions[id] = e
	return e.sess, true
}

func (s *sessionStore) put(sess *session) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.sessions[id] = sessionEntry{sess: sess, expiresAt: s.clock().Add(s.ttl)}
	return id
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) sweepLocked() {
	now := s.clock()
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
		}
	}
}
