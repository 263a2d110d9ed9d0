package workflow

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrSessionNotFound = errors.New("upload session not found")

const (
	DefaultSessionTTL      = 30 * time.Minute
	sessionCleanupInterval = 10 * time.Minute
)

// Registry tracks active upload sessions. Abandoned sessions expire after
// the TTL; expiry counts as close, so a remote result landing after eviction
// is dropped like any other stale response.
type Registry struct {
	sessions *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	c := cache.New(ttl, sessionCleanupInterval)
	c.OnEvicted(func(key string, value interface{}) {
		if s, ok := value.(*Session); ok {
			s.Close()
		}
	})
	return &Registry{sessions: c}
}

// Create registers a fresh idle session for the user.
func (r *Registry) Create(userID int64) *Session {
	s := newSession(uuid.NewString(), userID)
	r.sessions.Set(s.ID(), s, cache.DefaultExpiration)
	return s
}

// Get returns the session, scoped to its owning user.
func (r *Registry) Get(id string, userID int64) (*Session, error) {
	value, found := r.sessions.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	s, ok := value.(*Session)
	if !ok || s.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes and removes the session. Unknown IDs are a no-op.
func (r *Registry) Delete(id string) {
	r.sessions.Delete(id)
}
