// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is the escape hatch a gpucontext.DeviceProvider implements
// to hand out its raw hal handles for device sharing.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewAdapterFromProvider creates an adapter on the device of an existing
// rasterization context, so compute work and rendering share one queue.
// The provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewAdapterFromProvider(provider gpucontext.DeviceProvider) (*Adapter, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrProvider)
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}

	return NewAdapter(device, queue)
}
