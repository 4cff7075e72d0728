package catalog

import "errors"

// catalogUnavailableError wraps a transport or decode failure while talking
// to the remote catalog. The local store is guaranteed untouched when this
// is returned, so callers may simply retry later.
type catalogUnavailableError struct{ cause error }

func (e catalogUnavailableError) Error() string { return "catalog unavailable: " + e.cause.Error() }
func (e catalogUnavailableError) Unwrap() error { return e.cause }

// ErrCatalogUnavailable constructs a catalogUnavailableError.
func ErrCatalogUnavailable(cause error) error { return catalogUnavailableError{cause: cause} }

// IsCatalogUnavailable reports whether err indicates an unreachable or
// unreadable remote catalog.
func IsCatalogUnavailable(err error) bool {
	var e catalogUnavailableError
	return errors.As(err, &e)
}

// modelNotFoundError signals a model id that is not present in the store.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// modelNotReadyError signals a known model whose weights are not on disk.
type modelNotReadyError struct{ id string }

func (e modelNotReadyError) Error() string { return "model not ready: " + e.id + " has no local weights" }

// ErrModelNotReady constructs a modelNotReadyError.
func ErrModelNotReady(id string) error { return modelNotReadyError{id: id} }

// IsModelNotReady reports whether err indicates weights that are not
// fetched yet.
func IsModelNotReady(err error) bool {
	var e modelNotReadyError
	return errors.As(err, &e)
}

// modelUnusableError signals a descriptor that cannot serve inference.
type modelUnusableError struct {
	id     string
	reason string
}

func (e modelUnusableError) Error() string { return "model " + e.id + " unusable: " + e.reason }

// ErrModelUnusable constructs a modelUnusableError.
func ErrModelUnusable(id, reason string) error { return modelUnusableError{id: id, reason: reason} }

// IsModelUnusable reports whether err indicates a permanently unusable
// descriptor (until its metadata changes).
func IsModelUnusable(err error) bool {
	var e modelUnusableError
	return errors.As(err, &e)
}
