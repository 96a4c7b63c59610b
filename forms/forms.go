package forms

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/jrsteele09/reconfile-dashboard/internal/validation"
)

const passwordMismatch = "Passwords do not match"

type SignInInput struct {
	Email    string `json:"email" form:"email" label:"Email" validate:"required,email"`
	Password string `json:"password" form:"password" label:"Password" validate:"required"`
}

type SignUpInput struct {
	Name            string `json:"name" form:"name" label:"Name" validate:"required,min=3"`
	Email           string `json:"email" form:"email" label:"Email" validate:"required,email"`
	Password        string `json:"password" form:"password" label:"Password" validate:"required,min=6"`
	ConfirmPassword string `json:"-" form:"confirmPassword" label:"Confirm password" validate:"required,eqfield=Password"`
}

type UpdateCurrentUserInput struct {
	Name  string `json:"name" form:"name" label:"Name" validate:"required"`
	Email string `json:"email" form:"email" label:"Email" validate:"required,email"`
}

type UpdatePasswordInput struct {
	OldPassword string `json:"oldPassword" form:"oldPassword" label:"Current password" validate:"required"`
	NewPassword string `json:"newPassword" form:"newPassword" label:"New password" validate:"required,min=6"`
}

// ValidationErrors maps a form field name to the message shown next to it
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return strings.Join(parts, "; ")
}

// Get returns the message for field, or "" when it is valid
func (v ValidationErrors) Get(field string) string {
	return v[field]
}

// Validate checks input against its rules. A rule violation is returned as ValidationErrors.
func Validate(input interface{}) error {
	err := validation.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !apperrors.As(err, &fieldErrs) {
		return fmt.Errorf("[forms Validate] %w", err)
	}

	out := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe, label(input, fe))
	}
	return out
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "eqfield":
		return passwordMismatch
	default:
		return label + " is invalid"
	}
}

func label(input interface{}, fe validator.FieldError) string {
	t := reflect.TypeOf(input)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(fe.StructField()); ok {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
	}
	return fe.Field()
}
