package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the principal may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates input rejected at the write boundary.
	ErrValidation = errors.New("validation failed")
)
