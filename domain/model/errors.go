package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced at the handler boundary.
type ErrorKind string

const (
	ErrAuthorization          ErrorKind = "authorization"
	ErrNotAuthenticated       ErrorKind = "not_authenticated"
	ErrTokenExchange          ErrorKind = "token_exchange"
	ErrTokenRefresh           ErrorKind = "token_refresh"
	ErrPrerequisiteMissing    ErrorKind = "prerequisite_missing"
	ErrMediaDownload          ErrorKind = "media_download"
	ErrMediaUpload            ErrorKind = "media_upload"
	ErrMediaProcessingFailed  ErrorKind = "media_processing_failed"
	ErrMediaProcessingTimeout ErrorKind = "media_processing_timeout"
	ErrPostCreation           ErrorKind = "post_creation"
)

// Upload phases tagged onto media_upload errors.
const (
	PhaseInit     = "init"
	PhaseAppend   = "append"
	PhaseFinalize = "finalize"
	PhaseStatus   = "status"
)

// ErrSessionExpired is returned by SessionClaims.Valid.
var ErrSessionExpired = errors.New("session token expired")

// AppError is a structured error: a kind for the caller to branch on, a human
// message, and optional upstream detail (raw platform error body) plus the
// upload phase for media errors. None of these are retried inside the core.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Phase   string    `json:"phase,omitempty"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Phase, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError builds a structured error wrapping an optional cause.
func NewAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// WithPhase tags the upload phase that produced the error.
func (e *AppError) WithPhase(phase string) *AppError {
	e.Phase = phase
	return e
}

// WithDetail attaches the upstream error body for diagnostics.
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// AsAppError unwraps err into an *AppError when one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind == kind
	}
	return false
}
