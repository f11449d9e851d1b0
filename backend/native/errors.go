package native

import "errors"

var (
	// ErrClosed is returned once the adapter has been closed.
	ErrClosed = errors.New("native: adapter closed")

	// ErrOutOfMemory is returned when an allocation would exceed the
	// configured memory budget.
	ErrOutOfMemory = errors.New("native: memory budget exceeded")

	// ErrUnknownResource is returned when an ID does not name a live
	// resource.
	ErrUnknownResource = errors.New("native: unknown resource")

	// ErrSurfaceBusy is returned when a map conflicts with the current
	// owner of the surface.
	ErrSurfaceBusy = errors.New("native: surface busy")

	// ErrSurfaceState is returned when a surface operation does not match
	// the surface's ownership state.
	ErrSurfaceState = errors.New("native: invalid surface state")

	// ErrKernelKind is returned for kernels this backend cannot run.
	ErrKernelKind = errors.New("native: WGSL kernels require a device backend")

	// ErrBadDescriptor is returned for invalid descriptor contents.
	ErrBadDescriptor = errors.New("native: invalid descriptor")

	// ErrBadExternal is returned when a registered external handle is not
	// a *PixelBuffer or does not match its descriptor.
	ErrBadExternal = errors.New("native: external handle mismatch")
)
