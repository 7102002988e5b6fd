package common

import "errors"

// Error taxonomy shared by the service and HTTP layers. Services wrap these
// with fmt.Errorf("%w: ...") and handlers map them to status codes with
// errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("expired")
	ErrUpstream          = errors.New("upstream provider failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
)
