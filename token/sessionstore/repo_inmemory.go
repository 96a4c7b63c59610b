package sessionstore

import (
	"context"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]map[string]entry // sessionID -> name -> entry
	now      func() time.Time
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]map[string]entry),
		now:      time.Now,
	}
}

// WithNowTime overrides the clock used for expiry checks
func (r *InMemoryRepo) WithNowTime(now func() time.Time) *InMemoryRepo {
	r.now = now
	return r
}

// Put creates or replaces an entry. A non-positive ttl deletes it.
func (r *InMemoryRepo) Put(ctx context.Context, sessionID, name, value string, ttl time.Duration) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	if ttl <= 0 {
		return r.Delete(ctx, sessionID, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		r.sessions[sessionID] = make(map[string]entry)
	}
	r.sessions[sessionID][name] = entry{value: value, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID, name string) (*string, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID][name]
	if !ok || !r.now().Before(e.expiresAt) {
		return nil, nil
	}
	v := e.value
	return &v, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID, name string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(entries, name)

	if len(entries) == 0 {
		delete(r.sessions, sessionID)
	}
	return nil
}

func (r *InMemoryRepo) Move(_ context.Context, fromID, toID string) error {
	if fromID == "" || toID == "" {
		return ErrSessionIDRequired
	}
	if fromID == toID {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.sessions[fromID]
	delete(r.sessions, fromID)
	if !ok {
		return nil
	}
	if _, exists := r.sessions[toID]; !exists {
		r.sessions[toID] = make(map[string]entry, len(entries))
	}
	for name, e := range entries {
		r.sessions[toID][name] = e
	}
	return nil
}

// PurgeExpired drops expired entries and empty sessions
func (r *InMemoryRepo) PurgeExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	purged := 0
	for sessionID, entries := range r.sessions {
		for name, e := range entries {
			if !now.Before(e.expiresAt) {
				delete(entries, name)
				purged++
			}
		}
		if len(entries) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	return purged
}
