package app

import "errors"

var (
	// ErrNotFound indicates the requested book or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates the caller may not see or change the book.
	ErrAccessDenied = errors.New("access denied")
	// ErrValidation indicates a rejected book request.
	ErrValidation = errors.New("invalid request")
	// ErrNotReady indicates the PDF has not been rendered yet.
	ErrNotReady = errors.New("pdf not ready")
)
