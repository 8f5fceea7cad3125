package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// session binds one conversation engine to a transport-issued handle.
// The mutex serializes calls against the engine, honoring its documented
// one-in-flight-call-per-session contract.
type session struct {
	id       string
	engine   ConversationEngine
	mu       sync.Mutex
	lastSeen time.Time
}

// sessionRegistry owns session lifecycle: creation, lookup by key, and TTL
// expiry. The engine itself knows nothing about sessions.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  func() ConversationEngine
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func newSessionRegistry(factory func() ConversationEngine, ttl time.Duration) *sessionRegistry {
	r := &sessionRegistry{
		sessions: make(map[string]*session),
		factory:  factory,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go r.expireLoop()
	return r
}

// create makes a fresh session with a new engine and returns it.
func (r *sessionRegistry) create() *session {
	s := &session{
		id:       uuid.NewString(),
		engine:   r.factory(),
		lastSeen: time.Now(),
	}
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// lookup returns the session for id, refreshing its expiry clock.
func (r *sessionRegistry) lookup(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = time.Now()
	}
	return s, ok
}

func (r *sessionRegistry) expireLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for id, s := range r.sessions {
				if now.Sub(s.lastSeen) > r.ttl {
					delete(r.sessions, id)
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *sessionRegistry) close() {
	r.stopOnce.Do(func() { close(r.stop) })
}
