package apperr

import "errors"

// Sentinel errors for the four failure classes every service operation can
// raise. Handlers match these with errors.Is and map them to HTTP statuses;
// everything else is treated as an internal error.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidState     = errors.New("operation not valid in current state")
)
