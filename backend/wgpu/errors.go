// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import "errors"

var (
	// ErrClosed is returned once the adapter has been closed.
	ErrClosed = errors.New("wgpu: adapter closed")

	// ErrUnknownResource is returned when an ID does not name a live
	// resource.
	ErrUnknownResource = errors.New("wgpu: unknown resource")

	// ErrSurfaceBusy is returned when a map conflicts with the current
	// owner of the surface.
	ErrSurfaceBusy = errors.New("wgpu: surface busy")

	// ErrSurfaceState is returned when a surface operation does not match
	// the surface's ownership state.
	ErrSurfaceState = errors.New("wgpu: invalid surface state")

	// ErrKernelKind is returned for kernels this backend cannot run.
	ErrKernelKind = errors.New("wgpu: host kernels require the native backend")

	// ErrBadDescriptor is returned for invalid descriptor contents.
	ErrBadDescriptor = errors.New("wgpu: invalid descriptor")

	// ErrBadExternal is returned when a registered external handle is not
	// a hal texture.
	ErrBadExternal = errors.New("wgpu: external handle is not a hal.Texture")

	// ErrUnsupported is returned for configurations hal cannot express,
	// such as clamp-to-border addressing.
	ErrUnsupported = errors.New("wgpu: unsupported configuration")

	// ErrBlockShape is returned when a launch block shape does not match
	// the kernel's workgroup size.
	ErrBlockShape = errors.New("wgpu: block shape must match kernel workgroup size")

	// ErrProvider is returned when a device provider does not expose hal
	// handles.
	ErrProvider = errors.New("wgpu: device provider does not expose hal handles")
)
