package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/reconfile-dashboard/forms"
	"github.com/jrsteele09/reconfile-dashboard/internal/utils"
	"github.com/jrsteele09/reconfile-dashboard/pagination"
	"github.com/jrsteele09/reconfile-dashboard/suppliers"
	"github.com/jrsteele09/reconfile-dashboard/users"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"
	layoutTemplate  = "layout.html"

	pageSignIn    = "signin.html"
	pageSignUp    = "signup.html"
	pageDashboard = "dashboard.html"
	pageProfile   = "profile.html"
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"formatDate": utils.FormatDate,
	"initials":   utils.Initials,
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageSignIn, pageSignUp, pageDashboard, pageProfile} {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, fmt.Errorf("[server parsePages] %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// flash is a one-off message shown at the top of a page
type flash struct {
	Kind    string // "success" or "error"
	Message string
}

// pageData is the model every page template renders from
type pageData struct {
	Title        string
	AppName      string
	User         *users.User
	PollInterval string
	Guarded      bool
	Flash        *flash
	Errors       forms.ValidationErrors
	Form         map[string]string

	// Dashboard
	Overview  *suppliers.Overview
	Suppliers []suppliers.Supplier
	Search    pagination.SearchState
	Pager     pagination.View
}

func (s *Server) newPageData(r *http.Request, title string) *pageData {
	data := &pageData{
		Title:        title,
		AppName:      s.config.GetAppName(),
		PollInterval: fmt.Sprintf("%dms", s.config.GetGuardPollInterval().Milliseconds()),
		Form:         map[string]string{},
	}
	query := r.URL.Query()
	if msg := query.Get("error"); msg != "" {
		data.Flash = &flash{Kind: "error", Message: msg}
	} else if msg := query.Get("success"); msg != "" {
		data.Flash = &flash{Kind: "success", Message: msg}
	}
	return data
}

// render executes a page into a buffer first so a template error never leaves a half-written response
func (s *Server) render(w http.ResponseWriter, status int, page string, data *pageData) {
	tmpl, ok := s.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		log.Err(err).Str("page", page).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// newGuardedPageData is newPageData for pages behind the route guard. Those pages keep
// polling the session while open.
func (s *Server) newGuardedPageData(r *http.Request, title string) *pageData {
	data := s.newPageData(r, title)
	data.Guarded = true
	return data
}
