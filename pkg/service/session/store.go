// Package session holds authenticated guest sessions and per-session chat
// history. The authentication layer creates sessions; the concierge core only
// reads them, defaulting to the most recently logged-in session when no key
// is supplied (single-concierge-terminal deployment model).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrSessionNotFound = goerr.New("session not found")
	ErrNoSessions      = goerr.New("no sessions available")
)

// Store is a keyed session store with recency-based lookup.
type Store interface {
	// Get retrieves a session by key
	Get(ctx context.Context, key string) (*model.GuestSession, error)

	// Put saves or replaces a session
	Put(ctx context.Context, sess *model.GuestSession) error

	// Latest returns the session with the newest last-login timestamp.
	// Sessions without a usable timestamp lose to any session with one; if
	// none has a timestamp, the most recently inserted session wins.
	Latest(ctx context.Context) (*model.GuestSession, error)
}

// memoryStore keeps sessions in process memory for the life of the server,
// with no eviction. Insertion order is preserved for the Latest fallback.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.GuestSession
	order    []string
}

// NewMemoryStore creates an in-memory Store
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: map[string]*model.GuestSession{},
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (*model.GuestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, goerr.Wrap(ErrSessionNotFound, "unknown session key", goerr.V("key", key))
	}
	copied := *sess
	return &copied, nil
}

func (s *memoryStore) Put(_ context.Context, sess *model.GuestSession) error {
	if sess == nil || sess.Key == "" {
		return goerr.New("session key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.Key]; !exists {
		s.order = append(s.order, sess.Key)
	}
	copied := *sess
	s.sessions[sess.Key] = &copied
	return nil
}

func (s *memoryStore) Latest(_ context.Context) (*model.GuestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, ErrNoSessions
	}

	var (
		best   *model.GuestSession
		bestTS time.Time
	)
	// Insertion order scan; >= lets a later-inserted session win timestamp
	// ties, matching the "most recently inserted" fallback.
	for _, key := range s.order {
		sess := s.sessions[key]
		if sess.LastLogin.IsZero() {
			continue
		}
		if best == nil || sess.LastLogin.After(bestTS) || sess.LastLogin.Equal(bestTS) {
			best = sess
			bestTS = sess.LastLogin
		}
	}

	if best == nil {
		best = s.sessions[s.order[len(s.order)-1]]
	}

	copied := *best
	return &copied, nil
}
