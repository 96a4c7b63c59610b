package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/internal/config"
	"github.com/jrsteele09/reconfile-dashboard/token/sessionstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	sessionRepo  sessionstore.Repo
	httpClient   *http.Client
	registry     *prometheus.Registry
	metrics      *apiclient.Metrics
	refreshGroup *singleflight.Group
	pages        map[string]*template.Template
}

type Option func(*Server)

// WithSessionRepo sets where tokens are kept when token storage is memory or redis
func WithSessionRepo(repo sessionstore.Repo) Option {
	return func(s *Server) {
		s.sessionRepo = repo
	}
}

// WithHTTPClient sets the client used to reach the billing API
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithRegistry sets the registry exposed on /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:          cfg.GetEnv(),
		mux:          http.NewServeMux(),
		config:       cfg,
		httpClient:   &http.Client{Timeout: cfg.GetAPITimeout()},
		refreshGroup: &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = apiclient.NewMetrics(s.registry)

	switch cfg.GetTokenStorage() {
	case config.TokenStorageMemory:
		if s.sessionRepo == nil {
			s.sessionRepo = sessionstore.NewInMemoryRepo()
		}
	case config.TokenStorageRedis:
		if s.sessionRepo == nil {
			return nil, fmt.Errorf("[Server New] token storage %q needs a session repo", cfg.GetTokenStorage())
		}
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}
	s.pages = pages

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
