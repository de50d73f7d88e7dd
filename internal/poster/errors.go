package poster

import "errors"

// Sentinel errors shared across subsystems.
var (
	// ErrInvalidReference marks a reference that cannot be canonicalized.
	ErrInvalidReference = errors.New("invalid product reference")
	// ErrFetchTimeout marks a fetch that exceeded the request timeout.
	ErrFetchTimeout = errors.New("fetch timed out")
	// ErrNotFound marks a store lookup for an unknown row ID.
	ErrNotFound = errors.New("product not found")
)
