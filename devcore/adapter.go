package devcore

import "context"

// SamplerDesc fixes how a volume is sampled for its whole lifetime.
type SamplerDesc struct {
	// Normalized selects [0,1) coordinates instead of element coordinates.
	Normalized bool
	// Filter is the reconstruction filter.
	Filter FilterMode
	// AddressU, AddressV, AddressW resolve out-of-range coordinates per axis.
	AddressU AddressMode
	AddressV AddressMode
	AddressW AddressMode
	// Read is how fetched elements are presented.
	Read ReadMode
	// Border is the value returned by AddressClampToBorder.
	Border float32
}

// VolumeDesc describes a 3D sampling resource to create.
type VolumeDesc struct {
	Label   string
	Width   uint32
	Height  uint32
	Depth   uint32
	Element ElementType
	Sampler SamplerDesc
}

// SurfaceDesc describes an external render target to register.
type SurfaceDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format PixelFormat
	Access AccessFlag
}

// KernelDesc describes a compute kernel to load. Exactly one of Func and
// WGSL must be set: host backends run Func, device backends compile WGSL.
type KernelDesc struct {
	Label string
	// Func is the host implementation of the kernel.
	Func KernelFunc
	// WGSL is the device implementation of the kernel.
	WGSL string
	// EntryPoint is the compute entry point in WGSL. Defaults to "main".
	EntryPoint string
	// WorkgroupSize is the block shape the kernel was written for.
	WorkgroupSize [3]uint32
	// SamplesVolume declares that the kernel binds a volume and sampler.
	SamplesVolume bool
}

// DispatchDesc describes one kernel launch.
type DispatchDesc struct {
	Kernel KernelID
	// Grid is the number of blocks per axis.
	Grid [3]uint32
	// Block is the number of threads per block per axis.
	Block [3]uint32
	// Target must be a currently mapped surface.
	Target SurfaceID
	// Volume is the optional sampling resource, InvalidID for none.
	Volume VolumeID
}

// ThreadID is the global position of one kernel invocation in the launch.
type ThreadID struct {
	X, Y, Z uint32
}

// Texel is one RGBA pixel value, 8 bits per channel.
type Texel [4]uint8

// Target is the write-only view of a mapped surface a kernel stores into.
// Stores outside the surface extent are discarded.
type Target interface {
	// Extent returns the surface dimensions in pixels.
	Extent() (width, height uint32)
	// Store writes one texel at (x, y).
	Store(x, y uint32, t Texel)
}

// Sampler is the read-only view of a volume a kernel samples from.
type Sampler interface {
	// Sample fetches a filtered value at (u, v, w). Coordinates are
	// normalized or element-space per the volume's sampler configuration.
	// Out-of-range coordinates resolve via the address modes; Sample
	// never fails.
	Sample(u, v, w float32) float32
}

// KernelFunc is a host kernel body, invoked once per thread. The sampler
// is nil when the launch binds no volume.
type KernelFunc func(id ThreadID, dst Target, vol Sampler)

// Adapter is the device contract implemented by every backend.
//
// Create/Register calls return live resource IDs; Destroy/Unregister
// invalidate them. Dispatch enqueues work on the backend's in-order
// stream without blocking; Wait blocks until the stream drains.
// All methods are safe for concurrent use.
type Adapter interface {
	// Name identifies the backend.
	Name() string
	// SupportsCompute reports whether kernels can run at all.
	SupportsCompute() bool
	// MaxWorkgroupSize is the largest supported block shape per axis.
	MaxWorkgroupSize() [3]uint32
	// MaxVolumeExtent is the largest supported volume per axis.
	MaxVolumeExtent() [3]uint32

	// CreateVolume uploads data (len Width*Height*Depth, x-major) into an
	// immutable sampling resource.
	CreateVolume(desc *VolumeDesc, data []float32) (VolumeID, error)
	// DestroyVolume releases a volume. Destroying InvalidID is a no-op.
	DestroyVolume(id VolumeID)

	// RegisterSurface binds an externally-owned render target. The
	// external handle type is backend-specific.
	RegisterSurface(external any, desc *SurfaceDesc) (SurfaceID, error)
	// UnregisterSurface releases the binding without destroying the
	// external target. Fails if the surface is unknown or mapped.
	UnregisterSurface(id SurfaceID) error
	// MapSurface acquires exclusive compute ownership of a surface.
	MapSurface(id SurfaceID) error
	// UnmapSurface returns ownership to the external pipeline.
	UnmapSurface(id SurfaceID) error

	// CreateKernel loads a kernel for later dispatch.
	CreateKernel(desc *KernelDesc) (KernelID, error)
	// DestroyKernel releases a kernel. Destroying InvalidID is a no-op.
	DestroyKernel(id KernelID)

	// Dispatch enqueues one launch. It returns after validation without
	// waiting for execution.
	Dispatch(desc *DispatchDesc) error
	// Wait blocks until all dispatched work has completed and returns the
	// first execution error since the previous Wait.
	Wait(ctx context.Context) error

	// Close releases all backend resources.
	Close() error
}
