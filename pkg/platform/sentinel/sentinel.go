package sentinel

import "errors"

// Sentinel errors shared by the services. Services wrap them with context
// (fmt.Errorf("...: %w", ErrX)) and the transport layer maps them to status
// codes with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrNotFound               = errors.New("not found")
	ErrRoleMismatch           = errors.New("role mismatch")
	ErrInvalidState           = errors.New("invalid state")
	ErrIncompatibleBloodGroup = errors.New("incompatible blood group")
	ErrNotOwner               = errors.New("not owner")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrRateLimited            = errors.New("rate limit exceeded")
)
