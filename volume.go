package interop

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/interop/devcore"
)

// VolumeData is a dense 3D float32 scalar field laid out x-major: the
// element at (x, y, z) lives at index z*width*height + y*width + x.
type VolumeData struct {
	values []float32
	width  uint32
	height uint32
	depth  uint32
}

// NewVolumeData wraps values as a width x height x depth field. The slice
// is used directly; the caller must not modify it afterwards.
func NewVolumeData(values []float32, width, height, depth uint32) (*VolumeData, error) {
	if width == 0 || height == 0 || depth == 0 {
		return nil, fmt.Errorf("%w: volume extent %dx%dx%d has a zero axis",
			ErrFormat, width, height, depth)
	}
	want := uint64(width) * uint64(height) * uint64(depth)
	if uint64(len(values)) != want {
		return nil, fmt.Errorf("%w: volume %dx%dx%d needs %d values, got %d",
			ErrFormat, width, height, depth, want, len(values))
	}
	return &VolumeData{values: values, width: width, height: height, depth: depth}, nil
}

// Width returns the extent along x.
func (d *VolumeData) Width() uint32 { return d.width }

// Height returns the extent along y.
func (d *VolumeData) Height() uint32 { return d.height }

// Depth returns the extent along z.
func (d *VolumeData) Depth() uint32 { return d.depth }

// At returns the element at (x, y, z) without bounds checking beyond the
// slice's own.
func (d *VolumeData) At(x, y, z uint32) float32 {
	return d.values[uint64(z)*uint64(d.width)*uint64(d.height)+uint64(y)*uint64(d.width)+uint64(x)]
}

// VolumeTexture is a static 3D sampling resource on a device. The field
// is uploaded once at construction and read-only afterwards; kernels see
// it through the sampler configuration fixed at creation.
type VolumeTexture struct {
	adapter  devcore.Adapter
	id       devcore.VolumeID
	width    uint32
	height   uint32
	depth    uint32
	config   SamplerConfig
	released atomic.Bool
}

// NewVolumeTexture uploads data to the adapter under the given sampling
// configuration. Ownership of the data transfers to the resource.
func NewVolumeTexture(adapter devcore.Adapter, data *VolumeData, config SamplerConfig) (*VolumeTexture, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: nil adapter", ErrAllocation)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: nil volume data", ErrFormat)
	}
	if err := config.validateFor(devcore.ElementFloat32); err != nil {
		return nil, err
	}
	if max := adapter.MaxVolumeExtent(); data.width > max[0] || data.height > max[1] || data.depth > max[2] {
		return nil, fmt.Errorf("%w: volume %dx%dx%d exceeds adapter limit %dx%dx%d",
			ErrAllocation, data.width, data.height, data.depth, max[0], max[1], max[2])
	}

	desc := devcore.VolumeDesc{
		Label:   "interop-volume",
		Width:   data.width,
		Height:  data.height,
		Depth:   data.depth,
		Element: devcore.ElementFloat32,
		Sampler: config.desc(),
	}
	id, err := adapter.CreateVolume(&desc, data.values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	Logger().Info("volume texture created",
		"id", uint64(id),
		"extent", fmt.Sprintf("%dx%dx%d", data.width, data.height, data.depth),
		"filter", config.Filter().String())

	return &VolumeTexture{
		adapter: adapter,
		id:      id,
		width:   data.width,
		height:  data.height,
		depth:   data.depth,
		config:  config,
	}, nil
}

// ID returns the backend resource ID, or devcore.InvalidID after Destroy.
func (v *VolumeTexture) ID() devcore.VolumeID {
	if v.released.Load() {
		return devcore.InvalidID
	}
	return v.id
}

// Width returns the extent along x.
func (v *VolumeTexture) Width() uint32 { return v.width }

// Height returns the extent along y.
func (v *VolumeTexture) Height() uint32 { return v.height }

// Depth returns the extent along z.
func (v *VolumeTexture) Depth() uint32 { return v.depth }

// Config returns the immutable sampling configuration.
func (v *VolumeTexture) Config() SamplerConfig { return v.config }

// Destroy releases the device memory. Safe to call multiple times; only
// the first call has an effect.
func (v *VolumeTexture) Destroy() {
	if v.released.Swap(true) {
		return
	}
	v.adapter.DestroyVolume(v.id)
	Logger().Info("volume texture destroyed", "id", uint64(v.id))
}
