package token

import (
	"fmt"
	"time"
)

// Entry names, shared by every medium
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
	RedirectPathKey = "redirectPath"
)

const (
	secondsPerDay          = 86400
	defaultRedirectPathTTL = 5 * time.Minute
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Medium is the durable storage a Store writes its entries to.
// Get returns nil when the entry is absent or expired.
type Medium interface {
	Set(name, value string, expires time.Time) error
	Get(name string) (*string, error)
	Remove(name string) error
}

// SessionRenewer is a Medium that can file its entries under a new session id.
type SessionRenewer interface {
	Renew() error
}

// Store persists the credential pair and the post-login redirect path.
type Store struct {
	medium      Medium
	redirectTTL time.Duration
	now         func() time.Time
}

type Option func(*Store)

// WithRedirectPathTTL sets how long a saved redirect path survives
func WithRedirectPathTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.redirectTTL = ttl
		}
	}
}

// WithNowTime overrides the clock used to compute expirations
func WithNowTime(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(medium Medium, opts ...Option) *Store {
	s := &Store{
		medium:      medium,
		redirectTTL: defaultRedirectPathTTL,
		now:         func() time.Time { return NowTimeFunc() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpiryDays converts an expires-in value in seconds to the day unit the entries are stored with.
func ExpiryDays(seconds int64) float64 {
	return float64(seconds) / secondsPerDay
}

// ExpiresAt returns the instant an entry saved at now with the given lifetime in days expires.
func ExpiresAt(now time.Time, days float64) time.Time {
	return now.Add(time.Duration(days * float64(24*time.Hour)).Round(time.Second))
}

// Save writes both tokens, each with the lifetime the API issued it with.
func (s *Store) Save(pair Pair) error {
	now := s.now()
	if err := s.medium.Set(AccessTokenKey, pair.AccessToken, ExpiresAt(now, ExpiryDays(pair.AccessExpiresIn))); err != nil {
		return fmt.Errorf("[token Save] failed to save access token: %w", err)
	}
	if err := s.medium.Set(RefreshTokenKey, pair.RefreshToken, ExpiresAt(now, ExpiryDays(pair.RefreshExpiresIn))); err != nil {
		return fmt.Errorf("[token Save] failed to save refresh token: %w", err)
	}
	return nil
}

// SaveNewSession saves pair for a freshly authenticated user. A medium keyed by
// session id is moved to a new id first, so an id from before sign-in never holds tokens.
func (s *Store) SaveNewSession(pair Pair) error {
	if renewer, ok := s.medium.(SessionRenewer); ok {
		if err := renewer.Renew(); err != nil {
			return fmt.Errorf("[token SaveNewSession] failed to renew session: %w", err)
		}
	}
	return s.Save(pair)
}

// Read returns the persisted tokens. Either may be absent.
func (s *Store) Read() (Tokens, error) {
	access, err := s.medium.Get(AccessTokenKey)
	if err != nil {
		return Tokens{}, fmt.Errorf("[token Read] failed to read access token: %w", err)
	}
	refresh, err := s.medium.Get(RefreshTokenKey)
	if err != nil {
		return Tokens{}, fmt.Errorf("[token Read] failed to read refresh token: %w", err)
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// Clear removes both tokens. The redirect path is left in place.
func (s *Store) Clear() error {
	if err := s.medium.Remove(AccessTokenKey); err != nil {
		return fmt.Errorf("[token Clear] failed to remove access token: %w", err)
	}
	if err := s.medium.Remove(RefreshTokenKey); err != nil {
		return fmt.Errorf("[token Clear] failed to remove refresh token: %w", err)
	}
	return nil
}

func (s *Store) SaveRedirectPath(path string) error {
	expires := ExpiresAt(s.now(), ExpiryDays(int64(s.redirectTTL/time.Second)))
	if err := s.medium.Set(RedirectPathKey, path, expires); err != nil {
		return fmt.Errorf("[token SaveRedirectPath] %w", err)
	}
	return nil
}

func (s *Store) ReadRedirectPath() (*string, error) {
	path, err := s.medium.Get(RedirectPathKey)
	if err != nil {
		return nil, fmt.Errorf("[token ReadRedirectPath] %w", err)
	}
	return path, nil
}

func (s *Store) ClearRedirectPath() error {
	if err := s.medium.Remove(RedirectPathKey); err != nil {
		return fmt.Errorf("[token ClearRedirectPath] %w", err)
	}
	return nil
}
