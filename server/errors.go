package server

import (
	"net/http"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/guard"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
)

const genericErrorMessage = "An unexpected error occurred."

// failureMessage turns a service error into the text shown to the user. When the call
// ended the session, the guard takes over and handled is true: a redirect was written.
func failureMessage(r *http.Request, sess *session, err error) (msg string, handled bool) {
	if sess.invalidated.Load() || apperrors.Is(err, apperrors.ErrSessionInvalidated) {
		state, gerr := sess.guard.Check(currentLocation(r))
		if gerr != nil {
			apperrors.Report(gerr, "route guard failed after session loss")
		}
		if state == guard.Unauthenticated || sess.nav.navigated() {
			return "", true
		}
	}

	var apiErr *apiclient.APIError
	if apperrors.As(err, &apiErr) {
		return apiErr.Error(), false
	}
	apperrors.Report(err, "unexpected failure calling the billing API")
	return genericErrorMessage, false
}
