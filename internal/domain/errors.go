package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrNoIdentifier     = errors.New("no driver identifier available")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnsupported      = errors.New("capability not supported by sink")
	ErrQueueFull        = errors.New("dispatch queue is at capacity")
	ErrStoreDisabled    = errors.New("alert store is disabled")
)
