package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/jrsteele09/reconfile-dashboard/token/cookiemedium"
)

const (
	// SessionCookieName holds the opaque id the entries are filed under
	SessionCookieName      = "reconfileSessionId"
	defaultSessionLifetime = 30 * 24 * time.Hour
)

var (
	_ token.Medium         = (*Medium)(nil)
	_ token.SessionRenewer = (*Medium)(nil)
)

// Medium keeps only a session id in the browser and the entries in a Repo.
type Medium struct {
	mu        sync.Mutex
	ctx       context.Context
	repo      Repo
	w         http.ResponseWriter
	r         *http.Request
	secure    bool
	lifetime  time.Duration
	now       func() time.Time
	sessionID string
	written   bool
}

type Option func(*Medium)

func WithSecure(secure bool) Option {
	return func(m *Medium) {
		m.secure = m.secure || secure
	}
}

// WithSessionLifetime sets the Max-Age of the session id cookie
func WithSessionLifetime(d time.Duration) Option {
	return func(m *Medium) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(m *Medium) {
		m.now = now
	}
}

func NewMedium(w http.ResponseWriter, r *http.Request, repo Repo, opts ...Option) *Medium {
	m := &Medium{
		ctx:      r.Context(),
		repo:     repo,
		w:        w,
		r:        r,
		secure:   cookiemedium.IsHTTPS(r),
		lifetime: defaultSessionLifetime,
		now:      time.Now,
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			m.sessionID = c.Value
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionID returns the current session id, empty until the first write
func (m *Medium) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

func (m *Medium) Set(name, value string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	m.writeSessionCookie()
	return m.repo.Put(m.ctx, m.sessionID, name, value, expires.Sub(m.now()))
}

func (m *Medium) Get(name string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		return nil, nil
	}
	v, err := m.repo.Get(m.ctx, m.sessionID, name)
	if errors.Is(err, ErrSessionIDRequired) {
		return nil, nil
	}
	return v, err
}

func (m *Medium) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		return nil
	}
	return m.repo.Delete(m.ctx, m.sessionID, name)
}

// Renew files the session's entries under a new id and sends the browser that id.
// The old id no longer reads anything.
func (m *Medium) Renew() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := uuid.NewString()
	if m.sessionID != "" {
		if err := m.repo.Move(m.ctx, m.sessionID, next); err != nil {
			return fmt.Errorf("[sessionstore Renew] %w", err)
		}
	}
	m.sessionID = next
	m.written = false
	m.writeSessionCookie()
	return nil
}

func (m *Medium) writeSessionCookie() {
	if m.written {
		return
	}
	m.written = true
	http.SetCookie(m.w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    m.sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.lifetime / time.Second),
	})
}
