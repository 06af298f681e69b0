package core

import "errors"

// Error taxonomy shared by all services. Callers branch with errors.Is;
// services attach detail with fmt.Errorf("%w: ...", ErrX).
var (
	// ErrNotFound means a referenced entity id did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input was rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrInvariant means the operation would break a cross-entity rule,
	// e.g. deleting a product still referenced by purchase or bill items.
	ErrInvariant = errors.New("invariant violation")

	// ErrConflict means a concurrent writer won; the caller may retry.
	ErrConflict = errors.New("concurrency conflict")
)
