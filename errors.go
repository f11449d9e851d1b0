package interop

import "errors"

// Sentinel errors returned by the interop package. Call sites wrap these
// with context via fmt.Errorf and %w, so use errors.Is to classify.
var (
	// ErrAllocation indicates device memory for a resource could not be
	// obtained.
	ErrAllocation = errors.New("interop: device allocation failed")

	// ErrFormat indicates an unsupported format or sampling configuration.
	ErrFormat = errors.New("interop: unsupported format")

	// ErrRegistration indicates an external surface could not be
	// registered, including duplicate registration.
	ErrRegistration = errors.New("interop: surface registration failed")

	// ErrMap indicates a surface could not be mapped for writing, either
	// because it is already mapped or because the external pipeline still
	// holds it.
	ErrMap = errors.New("interop: surface map failed")

	// ErrLaunch indicates a kernel launch was rejected or failed to
	// enqueue.
	ErrLaunch = errors.New("interop: kernel launch failed")

	// ErrSync indicates waiting for kernel completion failed.
	ErrSync = errors.New("interop: kernel synchronization failed")

	// ErrSyncTimeout indicates waiting for kernel completion exceeded the
	// configured deadline.
	ErrSyncTimeout = errors.New("interop: kernel synchronization timed out")

	// ErrIllegalState indicates an operation was attempted in a state
	// that does not permit it.
	ErrIllegalState = errors.New("interop: operation in illegal state")
)
