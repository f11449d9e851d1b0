// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements the devcore.Adapter contract over wgpu/hal.
//
// Volumes become 3D R32Float textures with a sampler fixed at creation;
// registered surfaces bind externally-owned hal textures as storage
// images; kernels are WGSL compute shaders compiled to SPIR-V via
// naga. Dispatch submits to the hal queue with a fence and returns; Wait
// blocks on the outstanding fences.
//
// The adapter can own its device or share the device of an existing
// rasterization context, see NewAdapterFromProvider.
package wgpu
