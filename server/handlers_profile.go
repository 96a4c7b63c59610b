package server

import (
	"net/http"

	"github.com/jrsteele09/reconfile-dashboard/forms"
	"github.com/jrsteele09/reconfile-dashboard/users"
)

// ProfilePageHandler shows the signed-in user's details (GET /profile)
func (s *Server) ProfilePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		data := s.newGuardedPageData(r, "Profile")

		user, err := sess.users.Current(r.Context())
		if err != nil {
			msg, handled := failureMessage(r, sess, err)
			if handled {
				return
			}
			data.Flash = &flash{Kind: "error", Message: msg}
		}
		fillProfileForm(data, user)
		s.render(w, http.StatusOK, pageProfile, data)
	}
}

// ProfileUpdateHandler saves name and email (POST /profile)
func (s *Server) ProfileUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		in := forms.UpdateCurrentUserInput{
			Name:  r.PostFormValue("name"),
			Email: r.PostFormValue("email"),
		}
		if _, err := sess.users.UpdateCurrent(r.Context(), in); err != nil {
			data := s.newGuardedPageData(r, "Profile")
			data.Form["name"] = in.Name
			data.Form["email"] = in.Email
			s.renderFormFailure(w, r, sess, pageProfile, data, err)
			return
		}
		redirectWithNotice(w, r, RouteProfile, "success", "Profile updated.")
	}
}

// PasswordUpdateHandler changes the signed-in user's password (POST /profile/password)
func (s *Server) PasswordUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		in := forms.UpdatePasswordInput{
			OldPassword: r.PostFormValue("oldPassword"),
			NewPassword: r.PostFormValue("newPassword"),
		}
		if err := sess.users.UpdatePassword(r.Context(), in); err != nil {
			data := s.newGuardedPageData(r, "Profile")
			user, uerr := sess.users.Current(r.Context())
			if uerr == nil {
				fillProfileForm(data, user)
			}
			s.renderFormFailure(w, r, sess, pageProfile, data, err)
			return
		}
		redirectWithNotice(w, r, RouteProfile, "success", "Password changed.")
	}
}

func fillProfileForm(data *pageData, user *users.User) {
	if user == nil {
		return
	}
	data.User = user
	data.Form["name"] = user.Name
	data.Form["email"] = user.Email
}
