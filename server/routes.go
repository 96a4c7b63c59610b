package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	guarded := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.HTMLMiddleWare(s.SessionMiddleware, s.RequireSession)...)
	}
	public := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.HTMLMiddleWare(s.SessionMiddleware)...)
	}

	// AUTH
	s.RegisterRouteFunc("GET "+RouteSignIn, public(s.SignInPageHandler()))
	s.RegisterRouteFunc("POST "+RouteSignIn, public(s.SignInSubmitHandler()))
	s.RegisterRouteFunc("GET "+RouteSignUp, public(s.SignUpPageHandler()))
	s.RegisterRouteFunc("POST "+RouteSignUp, public(s.SignUpSubmitHandler()))
	s.RegisterRouteFunc("GET "+RouteSignOut, public(s.SignOutHandler()))

	// DASHBOARD
	s.RegisterRouteFunc("GET "+RouteHome+"{$}", guarded(s.DashboardHandler()))
	s.RegisterRouteFunc("POST "+RouteSupplierImport, guarded(s.SupplierImportHandler()))
	s.RegisterRouteFunc("GET "+RouteProfile, guarded(s.ProfilePageHandler()))
	s.RegisterRouteFunc("POST "+RouteProfile, guarded(s.ProfileUpdateHandler()))
	s.RegisterRouteFunc("POST "+RouteProfilePassword, guarded(s.PasswordUpdateHandler()))

	// GUARD POLL
	s.RegisterRouteHandler("GET "+RouteSessionCheck, ChainMiddleware(s.SessionCheckHandler(), s.APIMiddleware(s.SessionMiddleware)...))

	// OPERATIONAL
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// STATIC
	static := ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare(s.CacheMiddleware, s.CompressionMiddleware)...)
	s.RegisterRouteHandler("GET "+RouteStaticCSS, static)
	s.RegisterRouteHandler("GET "+RouteStaticJS, static)
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			logError(r.Method, filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func logError(method, path, msg string) {
	log.Warn().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+msg+ResetColor)
}

// HealthHandler answers liveness probes
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
