package server

import (
	"net/http"

	"github.com/jrsteele09/reconfile-dashboard/forms"
	"github.com/jrsteele09/reconfile-dashboard/guard"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

// SignInPageHandler displays the sign-in form (GET /auth/signin)
func (s *Server) SignInPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if state, err := sess.guard.Evaluate(); err == nil && state == guard.Authenticated {
			redirectSuccess(w, r, RouteHome)
			return
		}
		s.render(w, http.StatusOK, pageSignIn, s.newPageData(r, "Sign in"))
	}
}

// SignInSubmitHandler processes the sign-in form (POST /auth/signin)
func (s *Server) SignInSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		in := forms.SignInInput{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}
		data := s.newPageData(r, "Sign in")
		data.Form["email"] = in.Email

		if _, err := sess.auth.SignIn(r.Context(), in); err != nil {
			s.renderFormFailure(w, r, sess, pageSignIn, data, err)
			return
		}
		s.completeSignIn(w, r, sess, pageSignIn, data)
	}
}

// SignUpPageHandler displays the registration form (GET /auth/signup)
func (s *Server) SignUpPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, pageSignUp, s.newPageData(r, "Create account"))
	}
}

// SignUpSubmitHandler processes the registration form (POST /auth/signup)
func (s *Server) SignUpSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		in := forms.SignUpInput{
			Name:            r.PostFormValue("name"),
			Email:           r.PostFormValue("email"),
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirmPassword"),
		}
		data := s.newPageData(r, "Create account")
		data.Form["name"] = in.Name
		data.Form["email"] = in.Email

		if _, err := sess.auth.SignUp(r.Context(), in); err != nil {
			s.renderFormFailure(w, r, sess, pageSignUp, data, err)
			return
		}
		s.completeSignIn(w, r, sess, pageSignUp, data)
	}
}

// SignOutHandler forgets the browser's tokens (GET /auth/signout)
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessionFrom(r).auth.SignOut(); err != nil {
			apperrors.Report(err, "failed to sign out")
		}
		redirectSuccess(w, r, RouteSignIn)
	}
}

// completeSignIn loads the profile of the new session and returns the browser to where
// the guard stopped it, or home.
func (s *Server) completeSignIn(w http.ResponseWriter, r *http.Request, sess *session, page string, data *pageData) {
	user, err := sess.users.Current(r.Context())
	if err != nil {
		s.renderFormFailure(w, r, sess, page, data, err)
		return
	}
	log.Info().Str("user_id", user.ID).Msg("signed in")

	target, err := guard.TakeRedirectPath(sess.store)
	if err != nil {
		log.Err(err).Msg("failed to restore redirect path")
	}
	redirectSuccess(w, r, target)
}

// renderFormFailure re-renders a form page with field errors or a flash message
func (s *Server) renderFormFailure(w http.ResponseWriter, r *http.Request, sess *session, page string, data *pageData, err error) {
	var verrs forms.ValidationErrors
	if apperrors.As(err, &verrs) {
		data.Errors = verrs
		s.render(w, http.StatusUnprocessableEntity, page, data)
		return
	}

	msg, handled := failureMessage(r, sess, err)
	if handled {
		return
	}
	data.Flash = &flash{Kind: "error", Message: msg}
	s.render(w, http.StatusOK, page, data)
}
