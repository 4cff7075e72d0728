package engine

import (
	"errors"
	"fmt"
)

// tooBusyError signals admission queue overflow or timeout for 429 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: job queue is full" }

func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// acceleratorExhaustedError signals that a tile still failed with
// out-of-memory at the configured floor size. The whole image fails;
// no partial result is returned.
type acceleratorExhaustedError struct {
	modelID string
	floor   int
}

func (e acceleratorExhaustedError) Error() string {
	return fmt.Sprintf("accelerator memory exhausted running %s even at %dpx tiles", e.modelID, e.floor)
}

func ErrAcceleratorExhausted(modelID string, floor int) error {
	return acceleratorExhaustedError{modelID: modelID, floor: floor}
}

func IsAcceleratorExhausted(err error) bool {
	var e acceleratorExhaustedError
	return errors.As(err, &e)
}

// budgetExceededError signals that a model load cannot fit the memory
// budget because every loaded handle is referenced by in-flight work.
type budgetExceededError struct {
	requiredMB int
	usedMB     int
	budgetMB   int
}

func (e budgetExceededError) Error() string {
	return fmt.Sprintf("model needs %dMB but %dMB of %dMB budget is held by live references", e.requiredMB, e.usedMB, e.budgetMB)
}

func ErrBudgetExceeded(requiredMB, usedMB, budgetMB int) error {
	return budgetExceededError{requiredMB: requiredMB, usedMB: usedMB, budgetMB: budgetMB}
}

func IsBudgetExceeded(err error) bool {
	var e budgetExceededError
	return errors.As(err, &e)
}

// imageTooLargeError rejects inputs over the configured pixel budget
// before any decode or inference work happens.
type imageTooLargeError struct {
	width     int
	height    int
	maxPixels int64
}

func (e imageTooLargeError) Error() string {
	return fmt.Sprintf("image %dx%d exceeds the %d pixel limit", e.width, e.height, e.maxPixels)
}

func ErrImageTooLarge(width, height int, maxPixels int64) error {
	return imageTooLargeError{width: width, height: height, maxPixels: maxPixels}
}

func IsImageTooLarge(err error) bool {
	var e imageTooLargeError
	return errors.As(err, &e)
}

// invalidImageError wraps a decode failure for 400 mapping.
type invalidImageError struct {
	cause error
}

func (e invalidImageError) Error() string { return "unreadable image: " + e.cause.Error() }

func (e invalidImageError) Unwrap() error { return e.cause }

func ErrInvalidImage(cause error) error { return invalidImageError{cause: cause} }

func IsInvalidImage(err error) bool {
	var e invalidImageError
	return errors.As(err, &e)
}

// scaleMismatchError rejects a scale override that differs from the
// model's native factor.
type scaleMismatchError struct {
	modelID   string
	requested int
	native    int
}

func (e scaleMismatchError) Error() string {
	return fmt.Sprintf("model %s upscales %dx, not %dx", e.modelID, e.native, e.requested)
}

func ErrScaleMismatch(modelID string, requested, native int) error {
	return scaleMismatchError{modelID: modelID, requested: requested, native: native}
}

func IsScaleMismatch(err error) bool {
	var e scaleMismatchError
	return errors.As(err, &e)
}

// modelBusyError refuses an unload while references are live.
type modelBusyError struct {
	id   string
	refs int
}

func (e modelBusyError) Error() string {
	return fmt.Sprintf("model %s has %d live references", e.id, e.refs)
}

func ErrModelBusy(id string, refs int) error { return modelBusyError{id: id, refs: refs} }

func IsModelBusy(err error) bool {
	var e modelBusyError
	return errors.As(err, &e)
}

// modelNotLoadedError reports an unload of a model that holds no cache
// entry. Distinct from the catalog's not-found: the model may well exist.
type modelNotLoadedError struct {
	id string
}

func (e modelNotLoadedError) Error() string { return "model not loaded: " + e.id }

func ErrModelNotLoaded(id string) error { return modelNotLoadedError{id: id} }

func IsModelNotLoaded(err error) bool {
	var e modelNotLoadedError
	return errors.As(err, &e)
}
