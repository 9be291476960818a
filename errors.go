package riders

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectivity is returned when the key-value store, the broker or a
	// remote HTTP endpoint cannot be reached. It is never retried internally.
	ErrConnectivity = errors.New("connectivity error")
	// ErrRouting is returned when a message cannot be routed to an exchange or queue
	ErrRouting = errors.New("routing error")
	// ErrAuthentication is returned when a token or signature fails verification
	ErrAuthentication = errors.New("authentication error")
	// ErrSerialization is returned when a body or cached value cannot be encoded or decoded
	ErrSerialization = errors.New("serialization error")
	// ErrPartialBatch is returned when one or more elements of a fan-out batch failed
	ErrPartialBatch = errors.New("partial batch failure")
	// ErrNotConnected is returned when a queue operation runs before Connect
	ErrNotConnected = errors.New("not connected")
	// ErrEventNotPublished is returned when a storage mutation succeeded but
	// its event could not be published
	ErrEventNotPublished = errors.New("event not published")
)
