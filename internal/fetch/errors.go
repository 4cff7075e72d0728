package fetch

import (
	"errors"
	"fmt"
)

type checksumMismatchError struct {
	id   string
	want string
	got  string
}

func (e *checksumMismatchError) Error() string {
	return fmt.Sprintf("model %s: downloaded weights failed checksum verification (want %s, got %s)", e.id, e.want, e.got)
}

// ErrChecksumMismatch reports a completed transfer whose content hash does
// not match the descriptor. The artifact has already been discarded.
func ErrChecksumMismatch(id, want, got string) error {
	return &checksumMismatchError{id: id, want: want, got: got}
}

func IsChecksumMismatch(err error) bool {
	var e *checksumMismatchError
	return errors.As(err, &e)
}

type unsupportedSourceError struct {
	id string
}

func (e *unsupportedSourceError) Error() string {
	return fmt.Sprintf("model %s has no direct download source", e.id)
}

// ErrUnsupportedSource reports a model whose catalog entry carries no
// directly downloadable URL. The condition is permanent until the remote
// metadata changes or the weights are placed in the models directory by
// hand.
func ErrUnsupportedSource(id string) error {
	return &unsupportedSourceError{id: id}
}

func IsUnsupportedSource(err error) bool {
	var e *unsupportedSourceError
	return errors.As(err, &e)
}
