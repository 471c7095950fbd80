package feather

import (
	"fmt"
	"sync"

	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/promise"
)

// SessionCache keeps initialized sessions by key so that resources of
// equivalent endpoints can share one connection.
type SessionCache struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewSessionCache() *SessionCache {
	return &SessionCache{
		sessions: make(map[string]Session),
	}
}

// Put stores s unless an equivalent session is cached already. It returns
// the session that is cached afterwards.
func (c *SessionCache) Put(s Session) Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, exists := c.sessions[s.Key()]; exists && !isClosed(cached) {
		return cached
	}
	c.sessions[s.Key()] = s
	return s
}

// Take reselects r onto the cached session equivalent to its own. It
// reports false when no such session is cached.
func (c *SessionCache) Take(r Resource) (Resource, bool) {
	if r.IsZero() {
		return Resource{}, false
	}

	c.mu.Lock()
	cached, exists := c.sessions[r.Session().Key()]
	if exists && isClosed(cached) {
		delete(c.sessions, r.Session().Key())
		exists = false
	}
	c.mu.Unlock()

	if !exists {
		return Resource{}, false
	}
	reselected, err := r.ReselectOn(cached)
	if err != nil {
		return Resource{}, false
	}
	return reselected, true
}

// Remove drops s from the cache without closing it. Only the exact session
// instance is removed.
func (c *SessionCache) Remove(s Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, exists := c.sessions[s.Key()]; exists && cached == s {
		delete(c.sessions, s.Key())
		return true
	}
	return false
}

func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.sessions)
}

// Close closes and removes every cached session.
func (c *SessionCache) Close() *promise.Promise[[]struct{}] {
	c.mu.Lock()
	closing := make([]*promise.Promise[struct{}], 0, len(c.sessions))
	for key, s := range c.sessions {
		closing = append(closing, s.Close())
		delete(c.sessions, key)
	}
	c.mu.Unlock()

	return promise.All(closing...)
}

// Resolve returns r on its cached equivalent session, caching r's own
// session first if none exists.
func (c *SessionCache) Resolve(r Resource) (Resource, error) {
	if r.IsZero() {
		return Resource{}, fmt.Errorf("%w: resource has no session", data.ErrInvalid)
	}
	return r.ReselectOn(c.Put(r.Session()))
}

func isClosed(s Session) bool {
	return s.IsClosed()
}
