// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/interop/devcore"
)

// defaultFenceTimeout bounds fence waits when the caller's context carries
// no deadline.
const defaultFenceTimeout = 5 * time.Second

// Adapter implements devcore.Adapter over wgpu/hal.
//
// All methods are safe for concurrent use.
type Adapter struct {
	// device and queue are owned by the rasterization context; the
	// adapter never destroys them.
	device hal.Device
	queue  hal.Queue

	nextID atomic.Uint64

	mu       sync.RWMutex
	closed   bool
	volumes  map[devcore.VolumeID]*volumeResource
	surfaces map[devcore.SurfaceID]*surfaceResource
	kernels  map[devcore.KernelID]*kernelResource

	pendMu  sync.Mutex
	pending []*dispatchResources
}

type volumeResource struct {
	tex     hal.Texture
	view    hal.TextureView
	sampler hal.Sampler
}

type surfaceResource struct {
	tex    hal.Texture
	view   hal.TextureView
	mapped bool
	desc   devcore.SurfaceDesc
}

type kernelResource struct {
	label    string
	module   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	pipeLay  hal.PipelineLayout
	pipeline hal.ComputePipeline
	wg       [3]uint32
	samples  bool
}

// dispatchResources tracks the per-launch objects released after the
// fence signals.
type dispatchResources struct {
	device    hal.Device
	bindGroup hal.BindGroup
	cmdBuf    hal.CommandBuffer
	fence     hal.Fence
}

func (r *dispatchResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
	}
}

var _ devcore.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter over an existing hal device and queue.
// The caller keeps ownership of both.
func NewAdapter(device hal.Device, queue hal.Queue) (*Adapter, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrBadDescriptor)
	}
	return &Adapter{
		device:   device,
		queue:    queue,
		volumes:  make(map[devcore.VolumeID]*volumeResource),
		surfaces: make(map[devcore.SurfaceID]*surfaceResource),
		kernels:  make(map[devcore.KernelID]*kernelResource),
	}, nil
}

// Name identifies the backend.
func (a *Adapter) Name() string { return "wgpu" }

// SupportsCompute reports whether kernels can run. Always true here.
func (a *Adapter) SupportsCompute() bool { return true }

// MaxWorkgroupSize is the largest supported block shape per axis.
func (a *Adapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{256, 256, 64} }

// MaxVolumeExtent is the largest supported volume per axis.
func (a *Adapter) MaxVolumeExtent() [3]uint32 { return [3]uint32{2048, 2048, 2048} }

// DefaultSurfaceFormat is the pixel format compute surfaces use on this
// backend. Storage textures are rgba8 even when the swapchain is BGRA;
// such contexts present through an rgba8 intermediate target.
func (a *Adapter) DefaultSurfaceFormat() devcore.PixelFormat { return devcore.PixelRGBA8 }

func (a *Adapter) newID() uint64 { return a.nextID.Add(1) }

// CreateVolume uploads data into a 3D R32Float texture and creates the
// volume's sampler.
func (a *Adapter) CreateVolume(desc *devcore.VolumeDesc, data []float32) (devcore.VolumeID, error) {
	if desc == nil {
		return devcore.InvalidID, fmt.Errorf("%w: nil volume descriptor", ErrBadDescriptor)
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Depth == 0 {
		return devcore.InvalidID, fmt.Errorf("%w: volume extent %dx%dx%d",
			ErrBadDescriptor, desc.Width, desc.Height, desc.Depth)
	}
	want := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Depth)
	if uint64(len(data)) != want {
		return devcore.InvalidID, fmt.Errorf("%w: volume needs %d elements, got %d",
			ErrBadDescriptor, want, len(data))
	}

	addrU, err := convertAddressMode(desc.Sampler.AddressU)
	if err != nil {
		return devcore.InvalidID, err
	}
	addrV, err := convertAddressMode(desc.Sampler.AddressV)
	if err != nil {
		return devcore.InvalidID, err
	}
	addrW, err := convertAddressMode(desc.Sampler.AddressW)
	if err != nil {
		return devcore.InvalidID, err
	}
	filter := convertFilterMode(desc.Sampler.Filter)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return devcore.InvalidID, ErrClosed
	}

	label := desc.Label
	if label == "" {
		label = "interop_volume"
	}

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: desc.Depth},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension3D,
		Format:        gputypes.TextureFormatR32Float,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return devcore.InvalidID, fmt.Errorf("wgpu: create volume texture: %w", err)
	}

	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
		},
		floatsToBytes(data),
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Width * 4,
			RowsPerImage: desc.Height,
		},
		&hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: desc.Depth},
	)

	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gputypes.TextureFormatR32Float,
		Dimension:     gputypes.TextureViewDimension3D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		a.device.DestroyTexture(tex)
		return devcore.InvalidID, fmt.Errorf("wgpu: create volume view: %w", err)
	}

	sampler, err := a.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label + "_sampler",
		AddressModeU: addrU,
		AddressModeV: addrV,
		AddressModeW: addrW,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
	})
	if err != nil {
		a.device.DestroyTextureView(view)
		a.device.DestroyTexture(tex)
		return devcore.InvalidID, fmt.Errorf("wgpu: create volume sampler: %w", err)
	}

	id := devcore.VolumeID(a.newID())
	a.volumes[id] = &volumeResource{tex: tex, view: view, sampler: sampler}
	return id, nil
}

// DestroyVolume releases a volume's device objects.
func (a *Adapter) DestroyVolume(id devcore.VolumeID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.volumes[id]
	if !ok {
		return
	}
	a.device.DestroySampler(v.sampler)
	a.device.DestroyTextureView(v.view)
	a.device.DestroyTexture(v.tex)
	delete(a.volumes, id)
}

// RegisterSurface binds an externally-owned hal.Texture as a storage
// image. The texture must have been created with storage binding usage;
// it is never destroyed by the adapter.
func (a *Adapter) RegisterSurface(external any, desc *devcore.SurfaceDesc) (devcore.SurfaceID, error) {
	tex, ok := external.(hal.Texture)
	if !ok {
		return devcore.InvalidID, fmt.Errorf("%w: got %T", ErrBadExternal, external)
	}
	if desc == nil {
		return devcore.InvalidID, fmt.Errorf("%w: nil surface descriptor", ErrBadDescriptor)
	}
	format, err := convertPixelFormat(desc.Format)
	if err != nil {
		return devcore.InvalidID, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return devcore.InvalidID, ErrClosed
	}
	for _, s := range a.surfaces {
		if s.tex == tex {
			return devcore.InvalidID, fmt.Errorf("%w: texture already registered", ErrBadExternal)
		}
	}

	label := desc.Label
	if label == "" {
		label = "interop_surface"
	}
	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return devcore.InvalidID, fmt.Errorf("wgpu: create surface view: %w", err)
	}

	id := devcore.SurfaceID(a.newID())
	a.surfaces[id] = &surfaceResource{tex: tex, view: view, desc: *desc}
	return id, nil
}

// UnregisterSurface drops the binding. The external texture is untouched.
func (a *Adapter) UnregisterSurface(id devcore.SurfaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, id)
	}
	if s.mapped {
		return fmt.Errorf("%w: surface %d is mapped", ErrSurfaceState, id)
	}
	a.device.DestroyTextureView(s.view)
	delete(a.surfaces, id)
	return nil
}

// MapSurface acquires exclusive compute ownership of a surface. Queue
// ordering gives the actual hazard protection; the flag enforces the
// map/unmap discipline.
func (a *Adapter) MapSurface(id devcore.SurfaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, id)
	}
	if s.mapped {
		return fmt.Errorf("%w: surface %d already mapped", ErrSurfaceBusy, id)
	}
	s.mapped = true
	return nil
}

// UnmapSurface returns ownership to the rasterization pipeline.
func (a *Adapter) UnmapSurface(id devcore.SurfaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, id)
	}
	if !s.mapped {
		return fmt.Errorf("%w: surface %d not mapped", ErrSurfaceState, id)
	}
	s.mapped = false
	return nil
}

// CreateKernel compiles a WGSL kernel into a compute pipeline. Host
// kernels are rejected.
//
// The pipeline binds group 0 as:
//
//	binding 0: the target surface as a rgba8unorm storage texture
//	binding 1: the volume as texture_3d<f32> (kernels that sample)
//	binding 2: the volume sampler (kernels that sample)
func (a *Adapter) CreateKernel(desc *devcore.KernelDesc) (devcore.KernelID, error) {
	if desc == nil {
		return devcore.InvalidID, fmt.Errorf("%w: nil kernel descriptor", ErrBadDescriptor)
	}
	if desc.WGSL == "" {
		return devcore.InvalidID, ErrKernelKind
	}
	entryPoint := desc.EntryPoint
	if entryPoint == "" {
		entryPoint = "main"
	}
	label := desc.Label
	if label == "" {
		label = "interop_kernel"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return devcore.InvalidID, ErrClosed
	}

	module, err := createShaderModule(a.device, label, desc.WGSL)
	if err != nil {
		return devcore.InvalidID, err
	}

	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageCompute,
			StorageTexture: &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessReadWrite,
				Format:        gputypes.TextureFormatRGBA8Unorm,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		},
	}
	if desc.SamplesVolume {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension3D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	bgLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		a.device.DestroyShaderModule(module)
		return devcore.InvalidID, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}

	pipeLay, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		a.device.DestroyBindGroupLayout(bgLayout)
		a.device.DestroyShaderModule(module)
		return devcore.InvalidID, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: pipeLay,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		a.device.DestroyPipelineLayout(pipeLay)
		a.device.DestroyBindGroupLayout(bgLayout)
		a.device.DestroyShaderModule(module)
		return devcore.InvalidID, fmt.Errorf("wgpu: create compute pipeline: %w", err)
	}

	id := devcore.KernelID(a.newID())
	a.kernels[id] = &kernelResource{
		label:    label,
		module:   module,
		bgLayout: bgLayout,
		pipeLay:  pipeLay,
		pipeline: pipeline,
		wg:       desc.WorkgroupSize,
		samples:  desc.SamplesVolume,
	}
	return id, nil
}

// DestroyKernel releases a kernel's pipeline objects.
func (a *Adapter) DestroyKernel(id devcore.KernelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k, ok := a.kernels[id]
	if !ok {
		return
	}
	a.device.DestroyComputePipeline(k.pipeline)
	a.device.DestroyPipelineLayout(k.pipeLay)
	a.device.DestroyBindGroupLayout(k.bgLayout)
	a.device.DestroyShaderModule(k.module)
	delete(a.kernels, id)
}

// Dispatch encodes one launch and submits it with a fence, without
// waiting. The block shape must match the kernel's workgroup size since
// WGSL fixes it at compile time.
func (a *Adapter) Dispatch(desc *devcore.DispatchDesc) error {
	if desc == nil {
		return fmt.Errorf("%w: nil dispatch descriptor", ErrBadDescriptor)
	}

	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return ErrClosed
	}
	k, ok := a.kernels[desc.Kernel]
	if !ok {
		a.mu.RUnlock()
		return fmt.Errorf("%w: kernel %d", ErrUnknownResource, desc.Kernel)
	}
	s, ok := a.surfaces[desc.Target]
	if !ok {
		a.mu.RUnlock()
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, desc.Target)
	}
	if !s.mapped {
		a.mu.RUnlock()
		return fmt.Errorf("%w: surface %d not mapped", ErrSurfaceState, desc.Target)
	}
	var vol *volumeResource
	if desc.Volume != devcore.InvalidID {
		if vol, ok = a.volumes[desc.Volume]; !ok {
			a.mu.RUnlock()
			return fmt.Errorf("%w: volume %d", ErrUnknownResource, desc.Volume)
		}
	} else if k.samples {
		a.mu.RUnlock()
		return fmt.Errorf("%w: kernel %q samples a volume but none was bound", ErrBadDescriptor, k.label)
	}
	if k.wg != [3]uint32{} && desc.Block != k.wg {
		a.mu.RUnlock()
		return fmt.Errorf("%w: block %v, kernel workgroup %v", ErrBlockShape, desc.Block, k.wg)
	}
	a.mu.RUnlock()

	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.TextureViewBinding{
			TextureView: s.view.NativeHandle(),
		}},
	}
	if k.samples {
		entries = append(entries,
			gputypes.BindGroupEntry{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: vol.view.NativeHandle(),
			}},
			gputypes.BindGroupEntry{Binding: 2, Resource: gputypes.SamplerBinding{
				Sampler: vol.sampler.NativeHandle(),
			}},
		)
	}

	res := &dispatchResources{device: a.device}
	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   k.label + "_bg",
		Layout:  k.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	res.bindGroup = bg

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: k.label + "_encoder",
	})
	if err != nil {
		res.cleanup()
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(k.label); err != nil {
		res.cleanup()
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: k.label})
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(desc.Grid[0], desc.Grid[1], desc.Grid[2])
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		res.cleanup()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf

	fence, err := a.device.CreateFence()
	if err != nil {
		res.cleanup()
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	res.fence = fence

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		res.cleanup()
		return fmt.Errorf("wgpu: submit: %w", err)
	}

	a.pendMu.Lock()
	a.pending = append(a.pending, res)
	a.pendMu.Unlock()
	return nil
}

// Wait blocks until every outstanding fence signals, then releases the
// per-launch resources. Cancelling ctx or reaching its deadline ends
// the wait early.
func (a *Adapter) Wait(ctx context.Context) error {
	a.pendMu.Lock()
	pending := a.pending
	a.pending = nil
	a.pendMu.Unlock()

	var firstErr error
	for _, res := range pending {
		if firstErr == nil {
			firstErr = a.waitFence(ctx, res.fence)
		}
		res.cleanup()
	}
	return firstErr
}

// fencePollSlice bounds one hal wait so context cancellation is observed
// between slices.
const fencePollSlice = 10 * time.Millisecond

func (a *Adapter) waitFence(ctx context.Context, fence hal.Fence) error {
	start := time.Now()
	deadline := start.Add(defaultFenceTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("wgpu: fence timeout after %v: %w",
				time.Since(start).Round(time.Millisecond), context.DeadlineExceeded)
		}
		slice := fencePollSlice
		if remaining < slice {
			slice = remaining
		}
		ok, err := a.device.Wait(fence, 1, slice)
		if err != nil {
			return fmt.Errorf("wgpu: wait for fence: %w", err)
		}
		if ok {
			return nil
		}
	}
}

// Close waits for outstanding work and releases every resource. The
// device itself stays alive for its owning context.
func (a *Adapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultFenceTimeout)
	defer cancel()
	waitErr := a.Wait(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	for id, k := range a.kernels {
		a.device.DestroyComputePipeline(k.pipeline)
		a.device.DestroyPipelineLayout(k.pipeLay)
		a.device.DestroyBindGroupLayout(k.bgLayout)
		a.device.DestroyShaderModule(k.module)
		delete(a.kernels, id)
	}
	for id, s := range a.surfaces {
		a.device.DestroyTextureView(s.view)
		delete(a.surfaces, id)
	}
	for id, v := range a.volumes {
		a.device.DestroySampler(v.sampler)
		a.device.DestroyTextureView(v.view)
		a.device.DestroyTexture(v.tex)
		delete(a.volumes, id)
	}
	return waitErr
}

// floatsToBytes packs float32 elements little-endian for WriteTexture.
func floatsToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
