package interop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/interop/devcore"
)

// KernelSpec describes a compute kernel to load. Exactly one of Func and
// WGSL must be set; which one a given adapter accepts is backend-specific.
type KernelSpec struct {
	Label string
	// Func is a host kernel body for software adapters.
	Func devcore.KernelFunc
	// WGSL is kernel source for device adapters.
	WGSL string
	// EntryPoint is the WGSL compute entry point. Defaults to "main".
	EntryPoint string
	// WorkgroupSize is the block shape the kernel was written for. Device
	// adapters require launches to use exactly this block shape.
	WorkgroupSize [3]uint32
	// SamplesVolume declares that launches bind a volume.
	SamplesVolume bool
}

// Kernel is a loaded compute kernel.
type Kernel struct {
	adapter  devcore.Adapter
	id       devcore.KernelID
	label    string
	released atomic.Bool
}

// LoadKernel loads spec into the adapter.
func LoadKernel(adapter devcore.Adapter, spec KernelSpec) (*Kernel, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: nil adapter", ErrLaunch)
	}
	if (spec.Func == nil) == (spec.WGSL == "") {
		return nil, fmt.Errorf("%w: kernel needs exactly one of Func and WGSL", ErrLaunch)
	}
	desc := devcore.KernelDesc{
		Label:         spec.Label,
		Func:          spec.Func,
		WGSL:          spec.WGSL,
		EntryPoint:    spec.EntryPoint,
		WorkgroupSize: spec.WorkgroupSize,
		SamplesVolume: spec.SamplesVolume,
	}
	if desc.EntryPoint == "" {
		desc.EntryPoint = "main"
	}
	id, err := adapter.CreateKernel(&desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	Logger().Info("kernel loaded", "id", uint64(id), "label", spec.Label)
	return &Kernel{adapter: adapter, id: id, label: spec.Label}, nil
}

// ID returns the backend resource ID, or devcore.InvalidID after Destroy.
func (k *Kernel) ID() devcore.KernelID {
	if k.released.Load() {
		return devcore.InvalidID
	}
	return k.id
}

// Label returns the kernel label.
func (k *Kernel) Label() string { return k.label }

// Destroy releases the kernel. Safe to call multiple times.
func (k *Kernel) Destroy() {
	if k.released.Swap(true) {
		return
	}
	k.adapter.DestroyKernel(k.id)
}

// Dispatcher validates and forwards kernel launches to an adapter. Launch
// never blocks on execution; completion is observed through Wait.
type Dispatcher struct {
	adapter devcore.Adapter
}

// NewDispatcher creates a dispatcher over adapter.
func NewDispatcher(adapter devcore.Adapter) (*Dispatcher, error) {
	if adapter == nil {
		return nil, errors.New("interop: nil adapter")
	}
	if !adapter.SupportsCompute() {
		return nil, fmt.Errorf("%w: adapter %q does not support compute", ErrLaunch, adapter.Name())
	}
	return &Dispatcher{adapter: adapter}, nil
}

// Launch enqueues kernel over a grid x block thread shape writing through
// handle, optionally sampling volume (nil for none). The launch is
// validated here and enqueued without waiting for execution.
func (d *Dispatcher) Launch(grid, block [3]uint32, kernel *Kernel, handle *SurfaceWriteHandle, volume *VolumeTexture) error {
	if kernel == nil || kernel.ID() == devcore.InvalidID {
		return fmt.Errorf("%w: kernel is nil or destroyed", ErrLaunch)
	}
	if err := validateShape("grid", grid); err != nil {
		return err
	}
	if err := validateShape("block", block); err != nil {
		return err
	}
	if max := d.adapter.MaxWorkgroupSize(); block[0] > max[0] || block[1] > max[1] || block[2] > max[2] {
		return fmt.Errorf("%w: block shape %v exceeds adapter limit %v", ErrLaunch, block, max)
	}
	if handle == nil || !handle.Valid() {
		return fmt.Errorf("%w: surface write handle is stale or nil", ErrLaunch)
	}

	volID := devcore.VolumeID(devcore.InvalidID)
	if volume != nil {
		volID = volume.ID()
		if volID == devcore.InvalidID {
			return fmt.Errorf("%w: volume texture destroyed", ErrLaunch)
		}
	}

	desc := devcore.DispatchDesc{
		Kernel: kernel.id,
		Grid:   grid,
		Block:  block,
		Target: handle.surface.id,
		Volume: volID,
	}
	if err := d.adapter.Dispatch(&desc); err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	Logger().Debug("kernel launched",
		"kernel", uint64(kernel.id),
		"grid", fmt.Sprintf("%dx%dx%d", grid[0], grid[1], grid[2]),
		"block", fmt.Sprintf("%dx%dx%d", block[0], block[1], block[2]),
		"target", uint64(handle.surface.id))
	return nil
}

// Wait blocks until all launched work has completed. A context deadline
// maps to ErrSyncTimeout; cancellation stays distinguishable through
// errors.Is(err, context.Canceled); other failures map to ErrSync.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if err := d.adapter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrSyncTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", ErrSync, err)
		}
		return fmt.Errorf("%w: %v", ErrSync, err)
	}
	return nil
}

func validateShape(name string, shape [3]uint32) error {
	if shape[0] == 0 || shape[1] == 0 || shape[2] == 0 {
		return fmt.Errorf("%w: %s shape %v has a zero axis", ErrLaunch, name, shape)
	}
	return nil
}
