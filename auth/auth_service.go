package auth

import (
	"context"
	"fmt"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/forms"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Routes of the remote authentication endpoints
const (
	signInPath  = "auth/signin"
	signUpPath  = "auth/signup"
	refreshPath = "auth/refresh"
)

// Poster is the part of the API client the service calls through.
// It must not be a client with recovery enabled, a refresh must never trigger another refresh.
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

// TokenStore persists and clears the credential pair.
// SaveNewSession is used when a user authenticates, Save when a pair is refreshed.
type TokenStore interface {
	Save(pair token.Pair) error
	SaveNewSession(pair token.Pair) error
	Clear() error
}

// Service signs users in and out and keeps the credential pair up to date.
type Service struct {
	client Poster
	tokens TokenStore
	logger zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(client Poster, tokens TokenStore, opts ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[auth NewService] api client is required")
	}
	if tokens == nil {
		return nil, errors.New("[auth NewService] token store is required")
	}

	s := &Service{
		client: client,
		tokens: tokens,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignIn exchanges credentials for a credential pair and persists it
func (s *Service) SignIn(ctx context.Context, in forms.SignInInput) (token.Pair, error) {
	if err := forms.Validate(in); err != nil {
		return token.Pair{}, err
	}
	return s.authenticate(ctx, signInPath, in, s.tokens.SaveNewSession)
}

// SignUp registers a new account and persists the credential pair it is issued
func (s *Service) SignUp(ctx context.Context, in forms.SignUpInput) (token.Pair, error) {
	if err := forms.Validate(in); err != nil {
		return token.Pair{}, err
	}
	return s.authenticate(ctx, signUpPath, in, s.tokens.SaveNewSession)
}

// Refresh trades refreshToken for a new pair. It satisfies apiclient.Refresher.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	pair, err := s.authenticate(ctx, refreshPath, body, s.tokens.Save)
	if err != nil {
		return token.Pair{}, err
	}
	s.logger.Debug().Msg("credential pair refreshed")
	return pair, nil
}

// SignOut forgets the credential pair. The remote API is not told.
func (s *Service) SignOut() error {
	if err := s.tokens.Clear(); err != nil {
		return fmt.Errorf("[auth SignOut] %w", err)
	}
	return nil
}

func (s *Service) authenticate(ctx context.Context, path string, body any, save func(token.Pair) error) (token.Pair, error) {
	var resp apiclient.Response[token.Pair]
	if err := s.client.Post(ctx, path, body, &resp); err != nil {
		return token.Pair{}, err
	}
	if resp.Data.AccessToken == "" || resp.Data.RefreshToken == "" {
		return token.Pair{}, apperrors.Wrapf(apperrors.ErrEmptyTokenResponse, "[auth %s]", path)
	}
	if err := save(resp.Data); err != nil {
		return token.Pair{}, fmt.Errorf("[auth %s] failed to save tokens: %w", path, err)
	}
	return resp.Data, nil
}
