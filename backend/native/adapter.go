// Package native provides a pure-Go software implementation of the
// devcore.Adapter contract for tests and headless tools.
package native

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/interop/devcore"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithMemoryBudget caps the total bytes of volume storage the adapter
// will hold. Zero (the default) means unlimited.
func WithMemoryBudget(bytes uint64) Option {
	return func(a *Adapter) { a.budget = bytes }
}

// WithRowWorkers sets how many goroutines a launch fans out across.
// Defaults to runtime.NumCPU.
func WithRowWorkers(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.rowWorkers = n
		}
	}
}

// Adapter is the pure-Go implementation of devcore.Adapter. Volumes are
// host memory, surfaces are externally-owned PixelBuffers, kernels are
// host functions run on an in-order stream.
//
// All methods are safe for concurrent use.
type Adapter struct {
	budget     uint64
	rowWorkers int

	nextID atomic.Uint64

	mu         sync.RWMutex
	closed     bool
	used       uint64
	volumes    map[devcore.VolumeID]*volume
	surfaces   map[devcore.SurfaceID]*surfaceEntry
	byExternal map[*PixelBuffer]devcore.SurfaceID
	kernels    map[devcore.KernelID]*kernelEntry

	stream *stream
}

type surfaceEntry struct {
	buf    *PixelBuffer
	desc   devcore.SurfaceDesc
	mapped bool
}

type kernelEntry struct {
	fn    devcore.KernelFunc
	label string
	wg    [3]uint32
	vols  bool
}

var _ devcore.Adapter = (*Adapter)(nil)

// NewAdapter creates a software adapter.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		rowWorkers: runtime.NumCPU(),
		volumes:    make(map[devcore.VolumeID]*volume),
		surfaces:   make(map[devcore.SurfaceID]*surfaceEntry),
		byExternal: make(map[*PixelBuffer]devcore.SurfaceID),
		kernels:    make(map[devcore.KernelID]*kernelEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.stream = newStream(a.rowWorkers)
	return a
}

// Name identifies the backend.
func (a *Adapter) Name() string { return "native" }

// SupportsCompute reports whether kernels can run. Always true here.
func (a *Adapter) SupportsCompute() bool { return true }

// MaxWorkgroupSize is the largest supported block shape per axis.
func (a *Adapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{1024, 1024, 64} }

// MaxVolumeExtent is the largest supported volume per axis.
func (a *Adapter) MaxVolumeExtent() [3]uint32 { return [3]uint32{2048, 2048, 2048} }

func (a *Adapter) newID() uint64 { return a.nextID.Add(1) }

// CreateVolume copies data into host storage under the descriptor's
// sampling rules. Normalized-float reads of integer elements are scaled
// at upload so sampling stays a plain float blend.
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
	if desc.Sampler.Read == devcore.ReadNormalizedFloat && !desc.Element.Integer() {
		return devcore.InvalidID, fmt.Errorf("%w: normalized-float read of %s elements",
			ErrBadDescriptor, desc.Element)
	}
	bytes := want * 4

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return devcore.InvalidID, ErrClosed
	}
	if a.budget > 0 && a.used+bytes > a.budget {
		return devcore.InvalidID, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrOutOfMemory, bytes, a.used, a.budget)
	}

	scale := normalizeScale(desc.Element, desc.Sampler.Read)
	stored := make([]float32, len(data))
	if scale == 1 {
		copy(stored, data)
	} else {
		for i, v := range data {
			stored[i] = v / scale
		}
	}

	v := &volume{
		data:    stored,
		width:   int(desc.Width),
		height:  int(desc.Height),
		depth:   int(desc.Depth),
		sampler: desc.Sampler,
	}
	id := devcore.VolumeID(a.newID())
	a.volumes[id] = v
	a.used += bytes
	return id, nil
}

// DestroyVolume releases a volume's storage.
func (a *Adapter) DestroyVolume(id devcore.VolumeID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.volumes[id]
	if !ok {
		return
	}
	a.used -= uint64(len(v.data)) * 4
	delete(a.volumes, id)
}

// RegisterSurface binds an externally-owned *PixelBuffer. The buffer's
// dimensions and format must match the descriptor, and a buffer can be
// registered at most once.
func (a *Adapter) RegisterSurface(external any, desc *devcore.SurfaceDesc) (devcore.SurfaceID, error) {
	buf, ok := external.(*PixelBuffer)
	if !ok {
		return devcore.InvalidID, fmt.Errorf("%w: want *native.PixelBuffer, got %T", ErrBadExternal, external)
	}
	if desc == nil {
		return devcore.InvalidID, fmt.Errorf("%w: nil surface descriptor", ErrBadDescriptor)
	}
	if buf.width != desc.Width || buf.height != desc.Height {
		return devcore.InvalidID, fmt.Errorf("%w: buffer is %dx%d, descriptor says %dx%d",
			ErrBadExternal, buf.width, buf.height, desc.Width, desc.Height)
	}
	if buf.format != desc.Format {
		return devcore.InvalidID, fmt.Errorf("%w: buffer format %s, descriptor says %s",
			ErrBadExternal, buf.format, desc.Format)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return devcore.InvalidID, ErrClosed
	}
	if _, dup := a.byExternal[buf]; dup {
		return devcore.InvalidID, fmt.Errorf("%w: buffer already registered", ErrBadExternal)
	}

	id := devcore.SurfaceID(a.newID())
	a.surfaces[id] = &surfaceEntry{buf: buf, desc: *desc}
	a.byExternal[buf] = id
	return id, nil
}

// UnregisterSurface releases the binding. The buffer itself is untouched.
func (a *Adapter) UnregisterSurface(id devcore.SurfaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, id)
	}
	if e.mapped {
		return fmt.Errorf("%w: surface %d is mapped", ErrSurfaceState, id)
	}
	delete(a.surfaces, id)
	delete(a.byExternal, e.buf)
	return nil
}

// MapSurface acquires exclusive compute ownership. Fails while the raster
// side holds an in-flight read.
func (a *Adapter) MapSurface(id devcore.SurfaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, id)
	}
	if e.mapped {
		return fmt.Errorf("%w: surface %d already mapped", ErrSurfaceBusy, id)
	}
	if e.buf.reading() {
		return fmt.Errorf("%w: surface %d has an in-flight read", ErrSurfaceBusy, id)
	}
	e.mapped = true
	return nil
}

// UnmapSurface returns ownership to the raster side.
func (a *Adapter) UnmapSurface(id devcore.SurfaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, id)
	}
	if !e.mapped {
		return fmt.Errorf("%w: surface %d not mapped", ErrSurfaceState, id)
	}
	e.mapped = false
	return nil
}

// CreateKernel loads a host kernel. WGSL kernels are rejected.
func (a *Adapter) CreateKernel(desc *devcore.KernelDesc) (devcore.KernelID, error) {
	if desc == nil {
		return devcore.InvalidID, fmt.Errorf("%w: nil kernel descriptor", ErrBadDescriptor)
	}
	if desc.Func == nil {
		return devcore.InvalidID, ErrKernelKind
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return devcore.InvalidID, ErrClosed
	}
	id := devcore.KernelID(a.newID())
	a.kernels[id] = &kernelEntry{
		fn:    desc.Func,
		label: desc.Label,
		wg:    desc.WorkgroupSize,
		vols:  desc.SamplesVolume,
	}
	return id, nil
}

// DestroyKernel releases a kernel.
func (a *Adapter) DestroyKernel(id devcore.KernelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.kernels, id)
}

// Dispatch validates one launch and enqueues it on the stream without
// waiting for execution.
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
	e, ok := a.surfaces[desc.Target]
	if !ok {
		a.mu.RUnlock()
		return fmt.Errorf("%w: surface %d", ErrUnknownResource, desc.Target)
	}
	if !e.mapped {
		a.mu.RUnlock()
		return fmt.Errorf("%w: surface %d not mapped", ErrSurfaceState, desc.Target)
	}
	var sampler devcore.Sampler
	if desc.Volume != devcore.InvalidID {
		v, ok := a.volumes[desc.Volume]
		if !ok {
			a.mu.RUnlock()
			return fmt.Errorf("%w: volume %d", ErrUnknownResource, desc.Volume)
		}
		sampler = v
	} else if k.vols {
		a.mu.RUnlock()
		return fmt.Errorf("%w: kernel %q samples a volume but none was bound", ErrBadDescriptor, k.label)
	}
	buf := e.buf
	a.mu.RUnlock()

	return a.stream.enqueue(job{
		label:   k.label,
		fn:      k.fn,
		grid:    desc.Grid,
		block:   desc.Block,
		dst:     target{buf: buf},
		sampler: sampler,
	})
}

// Wait drains the stream and returns the first execution error since the
// previous Wait.
func (a *Adapter) Wait(ctx context.Context) error {
	return a.stream.wait(ctx)
}

// Close stops the stream and drops all resources.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.volumes = map[devcore.VolumeID]*volume{}
	a.surfaces = map[devcore.SurfaceID]*surfaceEntry{}
	a.byExternal = map[*PixelBuffer]devcore.SurfaceID{}
	a.kernels = map[devcore.KernelID]*kernelEntry{}
	a.used = 0
	a.mu.Unlock()

	a.stream.close()
	return nil
}
