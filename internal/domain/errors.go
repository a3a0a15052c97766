package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrValidation              = errors.New("validation failed")
	ErrUnauthorized            = errors.New("authentication required")
	ErrForbidden               = errors.New("permission denied")
	ErrConflict                = errors.New("conflict")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrConcurrentModification  = errors.New("booking was modified concurrently")
	ErrSitterUnavailable       = errors.New("dog sitter is not available for these dates")
	ErrAlreadyReviewed         = errors.New("booking already has a review")
	ErrDuplicateEmail          = errors.New("user with this email already exists")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrRateLimited             = errors.New("too many attempts, try again later")
)
