package server

import (
	"io"
	"net/http"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/guard"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/jrsteele09/reconfile-dashboard/pagination"
	"github.com/jrsteele09/reconfile-dashboard/suppliers"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	maxUploadSize = 32 << 20
	uploadField   = "file"
)

// DashboardHandler renders the overview and the supplier list (GET /)
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		query := r.URL.Query()
		search := pagination.ParseSearchState(query)

		var (
			list     apiclient.ListResponse[suppliers.Supplier]
			overview suppliers.Overview
			data     = s.newGuardedPageData(r, "Dashboard")
		)
		// Siblings are not cancelled on a failure, one of them may be mid refresh.
		var g errgroup.Group
		ctx := r.Context()
		g.Go(func() (err error) {
			list, err = sess.suppliers.List(ctx, search.ListInput())
			return err
		})
		g.Go(func() (err error) {
			overview, err = sess.suppliers.Overview(ctx)
			return err
		})
		g.Go(func() (err error) {
			data.User, err = sess.users.Current(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			msg, handled := failureMessage(r, sess, err)
			if handled {
				return
			}
			data.Flash = &flash{Kind: "error", Message: msg}
		}

		// Flash parameters must not leak into pager links
		query.Del("error")
		query.Del("success")

		data.Search = search
		data.Overview = &overview
		data.Suppliers = list.Data
		data.Pager = pagination.NewView(RouteHome, query, list.Meta)
		s.render(w, http.StatusOK, pageDashboard, data)
	}
}

// SupplierImportHandler uploads a billing spreadsheet (POST /suppliers/import)
func (s *Server) SupplierImportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			redirectWithNotice(w, r, RouteHome, "error", "Choose a spreadsheet to import.")
			return
		}

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			redirectWithNotice(w, r, RouteHome, "error", "Choose a spreadsheet to import.")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			log.Err(err).Str("file", header.Filename).Msg("failed to read upload")
			redirectWithNotice(w, r, RouteHome, "error", genericErrorMessage)
			return
		}

		result, err := sess.suppliers.Import(r.Context(), suppliers.ImportInput{
			File: apiclient.File{Name: header.Filename, Content: content},
		})
		switch {
		case apperrors.Is(err, apperrors.ErrUnsupportedFileType):
			redirectWithNotice(w, r, RouteHome, "error", "Only .xlsx spreadsheets can be imported.")
		case apperrors.Is(err, apperrors.ErrEmptyFile):
			redirectWithNotice(w, r, RouteHome, "error", "The selected spreadsheet is empty.")
		case err != nil:
			msg, handled := failureMessage(r, sess, err)
			if !handled {
				redirectWithNotice(w, r, RouteHome, "error", msg)
			}
		default:
			log.Info().Str("file", header.Filename).Int("imported", result.Imported).Msg("spreadsheet imported")
			redirectWithNotice(w, r, RouteHome, "success", "Spreadsheet imported successfully.")
		}
	}
}

// SessionCheckHandler answers the guard poll of an open page (GET /session/check).
// Without a session the guard's redirect to the sign-in page is the answer.
func (s *Server) SessionCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		state, err := sess.guard.Check(currentLocation(r))
		if err != nil {
			apperrors.Report(err, "session check failed")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		if state == guard.Authenticated {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
