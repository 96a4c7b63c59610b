package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/auth"
	"github.com/jrsteele09/reconfile-dashboard/guard"
	"github.com/jrsteele09/reconfile-dashboard/internal/config"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/jrsteele09/reconfile-dashboard/suppliers"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/jrsteele09/reconfile-dashboard/token/cookiemedium"
	"github.com/jrsteele09/reconfile-dashboard/token/sessionstore"
	"github.com/jrsteele09/reconfile-dashboard/users"
	"github.com/rs/zerolog/log"
)

type contextKey string

const sessionContextKey contextKey = "session"

// session is the per-request view of one browser's credentials and the services acting for it
type session struct {
	store       *token.Store
	nav         *httpNavigator
	auth        *auth.Service
	users       *users.Service
	suppliers   *suppliers.Service
	guard       *guard.Guard
	invalidated atomic.Bool
}

func (s *Server) medium(w http.ResponseWriter, r *http.Request) token.Medium {
	secure := s.config.GetSecureCookies()
	if s.config.GetTokenStorage() == config.TokenStorageCookie {
		return cookiemedium.New(w, r, cookiemedium.WithSecure(secure))
	}
	return sessionstore.NewMedium(w, r, s.sessionRepo, sessionstore.WithSecure(secure))
}

func (s *Server) newSession(w http.ResponseWriter, r *http.Request) (*session, error) {
	store := token.NewStore(s.medium(w, r), token.WithRedirectPathTTL(s.config.GetRedirectPathTTL()))

	base, err := apiclient.New(s.config.GetAPIBaseURL(), store,
		apiclient.WithHTTPClient(s.httpClient),
		apiclient.WithMetrics(s.metrics),
		apiclient.WithRefreshGroup(s.refreshGroup),
	)
	if err != nil {
		return nil, fmt.Errorf("[server newSession] %w", err)
	}
	authService, err := auth.NewService(base, store)
	if err != nil {
		return nil, fmt.Errorf("[server newSession] %w", err)
	}

	sess := &session{
		store: store,
		nav:   &httpNavigator{w: w, r: r},
		auth:  authService,
	}
	client := base.WithRecovery(authService, func() {
		sess.invalidated.Store(true)
		if err := authService.SignOut(); err != nil {
			log.Err(err).Msg("failed to clear tokens of an invalidated session")
		}
	})
	if sess.users, err = users.NewService(client); err != nil {
		return nil, fmt.Errorf("[server newSession] %w", err)
	}
	if sess.suppliers, err = suppliers.NewService(client); err != nil {
		return nil, fmt.Errorf("[server newSession] %w", err)
	}
	sess.guard = guard.New(store, sess.nav, guard.WithSignInPath(RouteSignIn))
	return sess, nil
}

// SessionMiddleware attaches the browser's session to the request context
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.newSession(w, r)
		if err != nil {
			apperrors.Report(err, "failed to build session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess)))
	}
}

// RequireSession runs the route guard before a protected handler. The handler only runs
// once the guard has decided the session is authenticated.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		state, err := sess.guard.Check(currentLocation(r))
		if err != nil {
			apperrors.Report(err, "route guard failed")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		if state != guard.Authenticated {
			return
		}
		next(w, r)
	}
}

func sessionFrom(r *http.Request) *session {
	sess, _ := r.Context().Value(sessionContextKey).(*session)
	return sess
}
