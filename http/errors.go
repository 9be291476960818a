package http

import "errors"

// ErrUnauthorized is returned when a bearer token is missing or rejected.
var ErrUnauthorized = errors.New("unauthorized")
