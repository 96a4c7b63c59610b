package users

import (
	"context"
	"net/url"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/forms"
	"github.com/pkg/errors"
)

const (
	listPath     = "users"
	currentPath  = "users/current"
	passwordPath = "users/password"
)

type ListInput = apiclient.ListInput

// UpdateUserInput changes another user's account. ID selects the user and is not sent in the body.
type UpdateUserInput struct {
	ID          string       `json:"-" form:"id" label:"User" validate:"required"`
	Name        string       `json:"name" form:"name" label:"Name" validate:"required"`
	Email       string       `json:"email" form:"email" label:"Email" validate:"required,email"`
	Password    *string      `json:"password,omitempty" form:"password" label:"Password" validate:"omitempty,min=6"`
	AccessLevel *AccessLevel `json:"accessLevel,omitempty" form:"accessLevel"`
	Roles       []RoleType   `json:"roles,omitempty" form:"roles"`
	IsActive    *bool        `json:"isActive,omitempty" form:"isActive"`
}

// API is the part of the API client the service calls through
type API interface {
	Get(ctx context.Context, path string, params apiclient.Params, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
}

type Service struct {
	api API
}

func NewService(api API) (*Service, error) {
	if api == nil {
		return nil, errors.New("[users NewService] api client is required")
	}
	return &Service{api: api}, nil
}

// Current fetches the signed-in user's profile
func (s *Service) Current(ctx context.Context) (*User, error) {
	var resp apiclient.Response[User]
	if err := s.api.Get(ctx, currentPath, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *Service) List(ctx context.Context, in ListInput) (apiclient.ListResponse[User], error) {
	var resp apiclient.ListResponse[User]
	if err := s.api.Get(ctx, listPath, in.Params(), &resp); err != nil {
		return apiclient.ListResponse[User]{}, err
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, in UpdateUserInput) (*User, error) {
	if err := forms.Validate(in); err != nil {
		return nil, err
	}
	var resp apiclient.Response[User]
	if err := s.api.Put(ctx, listPath+"/"+url.PathEscape(in.ID), in, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *Service) UpdateCurrent(ctx context.Context, in forms.UpdateCurrentUserInput) (*User, error) {
	if err := forms.Validate(in); err != nil {
		return nil, err
	}
	var resp apiclient.Response[User]
	if err := s.api.Put(ctx, currentPath, in, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdatePassword changes the signed-in user's password. The API answers with no body.
func (s *Service) UpdatePassword(ctx context.Context, in forms.UpdatePasswordInput) error {
	if err := forms.Validate(in); err != nil {
		return err
	}
	return s.api.Patch(ctx, passwordPath, in, nil)
}
