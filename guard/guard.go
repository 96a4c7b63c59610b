package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSignInPath   = "/auth/signin"
	DefaultPollInterval = 5 * time.Second
	defaultLandingPath  = "/"
)

// State is the guard's decision about the current session
type State int

const (
	Unknown State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Navigator moves the browser to path, replacing the current history entry
type Navigator interface {
	Replace(path string)
}

// Store is the part of token.Store the guard reads and writes
type Store interface {
	Read() (token.Tokens, error)
	SaveRedirectPath(path string) error
}

// Guard decides whether a protected location may render. It only looks at the
// stored tokens and never calls the API.
type Guard struct {
	store      Store
	nav        Navigator
	signInPath string
	logger     zerolog.Logger
}

type Option func(*Guard)

func WithSignInPath(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.signInPath = path
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(store Store, nav Navigator, opts ...Option) *Guard {
	g := &Guard{
		store:      store,
		nav:        nav,
		signInPath: DefaultSignInPath,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate reports Authenticated when a refresh token is present
func (g *Guard) Evaluate() (State, error) {
	tokens, err := g.store.Read()
	if err != nil {
		return Unknown, fmt.Errorf("[guard Evaluate] %w", err)
	}
	if tokens.HasRefreshToken() {
		return Authenticated, nil
	}
	return Unauthenticated, nil
}

// Check evaluates the session for location (path and query). When unauthenticated it
// remembers location and sends the browser to the sign-in page.
func (g *Guard) Check(location string) (State, error) {
	state, err := g.Evaluate()
	if err != nil {
		return Unknown, err
	}
	if state == Authenticated {
		return state, nil
	}

	if err := g.store.SaveRedirectPath(SafePath(location)); err != nil {
		return Unknown, fmt.Errorf("[guard Check] %w", err)
	}
	g.logger.Debug().Str("location", location).Msg("no session, redirecting to sign in")
	g.nav.Replace(g.signInPath)
	return state, nil
}

// Run checks location at once, then every interval until the session is gone or ctx ends.
// It returns the last state decided.
func (g *Guard) Run(ctx context.Context, location string, interval time.Duration) (State, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	state, err := g.Check(location)
	if err != nil || state == Unauthenticated {
		return state, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return state, nil
		case <-ticker.C:
			state, err = g.Check(location)
			if err != nil {
				return Unknown, err
			}
			if state == Unauthenticated {
				return state, nil
			}
		}
	}
}

// SafePath keeps only same-site absolute paths. Anything else becomes "/".
func SafePath(location string) string {
	if !strings.HasPrefix(location, "/") || strings.HasPrefix(location, "//") || strings.HasPrefix(location, "/\\") {
		return defaultLandingPath
	}
	return location
}

// RedirectStore is the part of token.Store used to restore a saved location
type RedirectStore interface {
	ReadRedirectPath() (*string, error)
	ClearRedirectPath() error
}

// TakeRedirectPath returns the saved location, or "/" when there is none, and forgets it.
func TakeRedirectPath(store RedirectStore) (string, error) {
	path, err := store.ReadRedirectPath()
	if err != nil {
		return defaultLandingPath, fmt.Errorf("[guard TakeRedirectPath] %w", err)
	}
	if path == nil {
		return defaultLandingPath, nil
	}
	if err := store.ClearRedirectPath(); err != nil {
		return defaultLandingPath, fmt.Errorf("[guard TakeRedirectPath] %w", err)
	}
	return SafePath(*path), nil
}
