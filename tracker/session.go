package tracker

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Session carries the per-tab tracking state: its identifier, the latest
// visit recorded in it and the first-touch source. It is passed explicitly
// through the tracker entry points.
type Session struct {
	ID string

	mu         sync.Mutex
	visitID    string
	firstTouch string
	lastSeen   time.Time
}

func (s *Session) VisitID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visitID
}

func (s *Session) SetVisitID(id string) {
	s.mu.Lock()
	s.visitID = id
	s.mu.Unlock()
}

// FirstTouchSource returns the cached first-touch source, computing and
// caching it on the first call. Once set it never changes for the session.
func (s *Session) FirstTouchSource(compute func() string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstTouch == "" {
		s.firstTouch = compute()
	}
	return s.firstTouch
}

// FirstTouch returns the cached first-touch source, empty until one is known.
func (s *Session) FirstTouch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstTouch
}

// RestoreFirstTouch seeds the first-touch source carried by the client when
// the server has none for the session, e.g. after the session was swept or
// the process restarted. A source already cached is never replaced.
func (s *Session) RestoreFirstTouch(source string) {
	source = cleanSource(source)
	if source == "" {
		return
	}
	s.mu.Lock()
	if s.firstTouch == "" {
		s.firstTouch = source
	}
	s.mu.Unlock()
}

const maxSourceLen = 100

// cleanSource rejects carried sources that could not have come from the
// classifier: control characters or oversize values.
func cleanSource(source string) string {
	source = strings.TrimSpace(source)
	if len(source) > maxSourceLen || strings.IndexFunc(source, unicode.IsControl) >= 0 {
		return ""
	}
	return source
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore keeps sessions in memory. A session that sees no traffic for
// the TTL is dropped to bound memory; the tab still holds its id and
// first-touch source, so the session itself lives on.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GenerateSessionID returns a fresh random session identifier.
func GenerateSessionID() string {
	return uuid.NewString()
}

// Resolve returns the session for id, creating it when it is not known yet.
// A well-formed id the store has forgotten is adopted as is so the tab keeps
// its identifier; an empty or malformed id gets a fresh one. An adopted
// session starts without a first-touch source: callers restore the one the
// client carries with RestoreFirstTouch.
func (s *SessionStore) Resolve(id string) *Session {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.touch(now)
		return sess
	}
	if _, err := uuid.Parse(id); err != nil {
		id = GenerateSessionID()
	}
	sess := &Session{ID: id, lastSeen: now}
	s.sessions[id] = sess
	return sess
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and reports how many went.
func (s *SessionStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps periodically until ctx is done.
func (s *SessionStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
