// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/interop/devcore"
)

// convertAddressMode maps a devcore address mode onto gputypes.
// Clamp-to-border has no WebGPU equivalent and is rejected.
func convertAddressMode(m devcore.AddressMode) (gputypes.AddressMode, error) {
	switch m {
	case devcore.AddressClampToEdge:
		return gputypes.AddressModeClampToEdge, nil
	case devcore.AddressRepeat:
		return gputypes.AddressModeRepeat, nil
	case devcore.AddressMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat, nil
	default:
		return gputypes.AddressModeClampToEdge,
			fmt.Errorf("%w: address mode %s", ErrUnsupported, m)
	}
}

// convertFilterMode maps a devcore filter mode onto gputypes.
func convertFilterMode(m devcore.FilterMode) gputypes.FilterMode {
	if m == devcore.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// convertPixelFormat maps a devcore surface format onto gputypes.
// BGRA8 is rejected: core WebGPU has no bgra8unorm storage texture
// format, so such a view could never bind as a kernel target.
func convertPixelFormat(f devcore.PixelFormat) (gputypes.TextureFormat, error) {
	switch f {
	case devcore.PixelRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, nil
	default:
		return gputypes.TextureFormatRGBA8Unorm,
			fmt.Errorf("%w: pixel format %d", ErrUnsupported, f)
	}
}
