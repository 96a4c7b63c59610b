package server

import (
	"net/http"
	"net/url"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// currentLocation is the path and query the browser is showing. HTMX requests report
// it in HX-Current-URL, plain GET navigations are the location themselves, and a plain
// form post lands back on the home page.
func currentLocation(r *http.Request) string {
	if isHTMXRequest(r) {
		if u, err := url.Parse(r.Header.Get("HX-Current-URL")); err == nil && u.Path != "" {
			return u.RequestURI()
		}
	}
	if r.Method != http.MethodGet {
		return RouteHome
	}
	return r.URL.RequestURI()
}

// redirectWithNotice helper for htmx-aware redirects carrying a flash message
func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, kind, msg string) {
	redirectSuccess(w, r, path+"?"+url.Values{kind: {msg}}.Encode())
}

// httpNavigator performs guard navigations as HTTP redirects. Only the first
// navigation of a request is written.
type httpNavigator struct {
	w        http.ResponseWriter
	r        *http.Request
	redirect string
}

func (n *httpNavigator) Replace(path string) {
	if n.redirect != "" {
		return
	}
	n.redirect = path
	redirectSuccess(n.w, n.r, path)
}

// navigated reports whether a redirect has already been written
func (n *httpNavigator) navigated() bool {
	return n.redirect != ""
}
