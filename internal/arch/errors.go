package arch

import "errors"

// ErrOutOfMemory is returned by a family when the device cannot hold the
// requested launch. The inference runner reacts by shrinking the working
// tile size; every other error aborts the job as-is.
var ErrOutOfMemory = errors.New("accelerator out of memory")

// IsOutOfMemory reports whether err is a device memory exhaustion signal.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}
