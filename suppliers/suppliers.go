package suppliers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/pkg/errors"
)

const (
	listPath     = "suppliers"
	overviewPath = "suppliers/overview"
	importPath   = "suppliers/import"

	importField     = "file"
	importExtension = ".xlsx"
)

type ListInput = apiclient.ListInput

// ImportInput carries the spreadsheet to upload
type ImportInput struct {
	File apiclient.File
}

// ImportResult is what the API reports back after an import. Fields are zero when it reports nothing.
type ImportResult struct {
	FileName string `json:"fileName"`
	Imported int    `json:"imported"`
}

// API is the part of the API client the service calls through
type API interface {
	Get(ctx context.Context, path string, params apiclient.Params, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

type Service struct {
	api API
}

func NewService(api API) (*Service, error) {
	if api == nil {
		return nil, errors.New("[suppliers NewService] api client is required")
	}
	return &Service{api: api}, nil
}

func (s *Service) List(ctx context.Context, in ListInput) (apiclient.ListResponse[Supplier], error) {
	var resp apiclient.ListResponse[Supplier]
	if err := s.api.Get(ctx, listPath, in.Params(), &resp); err != nil {
		return apiclient.ListResponse[Supplier]{}, err
	}
	return resp, nil
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var resp apiclient.Response[Overview]
	if err := s.api.Get(ctx, overviewPath, nil, &resp); err != nil {
		return Overview{}, err
	}
	return resp.Data, nil
}

// Import uploads a spreadsheet. Only non-empty .xlsx files are sent.
func (s *Service) Import(ctx context.Context, in ImportInput) (ImportResult, error) {
	if !strings.EqualFold(filepath.Ext(in.File.Name), importExtension) {
		return ImportResult{}, apperrors.Wrapf(apperrors.ErrUnsupportedFileType, "[suppliers Import] %q", in.File.Name)
	}
	if len(in.File.Content) == 0 {
		return ImportResult{}, apperrors.Wrapf(apperrors.ErrEmptyFile, "[suppliers Import] %q", in.File.Name)
	}

	form := apiclient.NewFormData().Append(importField, in.File)
	var resp apiclient.Response[ImportResult]
	if err := s.api.Post(ctx, importPath, form, &resp); err != nil {
		return ImportResult{}, fmt.Errorf("[suppliers Import] %w", err)
	}
	return resp.Data, nil
}
