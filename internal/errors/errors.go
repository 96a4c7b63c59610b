package errors

import (
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// Common error types for the dashboard
var (
	// Session errors
	ErrNoRefreshToken     = errors.New("no refresh token")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrEmptyTokenResponse = errors.New("token response did not contain tokens")

	// Request errors
	ErrInvalidBaseURL = errors.New("invalid base URL")
	ErrInvalidRequest = errors.New("invalid request")

	// Upload errors
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("file is empty")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Report logs an unexpected error and forwards it to Sentry when a client has been initialised.
func Report(err error, msg string) {
	if err == nil {
		return
	}
	if sentry.CurrentHub().Client() != nil {
		sentry.CaptureException(err)
	}
	log.Err(err).Msg(msg)
}
