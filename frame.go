package interop

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FrameState is the position of a FrameController in its per-frame cycle.
type FrameState int

const (
	// FrameIdle means the rasterization pipeline owns the surface.
	FrameIdle FrameState = iota
	// FrameMapped means the surface is mapped for compute writing.
	FrameMapped
	// FrameKernelInFlight means a kernel has been launched this frame.
	FrameKernelInFlight
	// FrameSynced means launched work has completed but the surface is
	// still mapped.
	FrameSynced
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameMapped:
		return "mapped"
	case FrameKernelInFlight:
		return "kernel-in-flight"
	case FrameSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// FrameOption configures a FrameController.
type FrameOption func(*FrameController)

// WithSyncTimeout bounds how long Sync waits for kernel completion.
// Zero (the default) means no bound beyond the caller's context.
func WithSyncTimeout(d time.Duration) FrameOption {
	return func(f *FrameController) { f.syncTimeout = d }
}

// FrameController drives one surface through the per-frame cycle
// Idle -> Mapped -> KernelInFlight -> Synced -> Idle.
//
// The stepwise methods (Map, Submit, Sync, End) enforce the cycle order;
// RunFrame performs a whole frame and guarantees the surface is unmapped
// before returning, whatever fails in between. A frame that fails is
// skipped: the error is logged and returned, and the controller is back
// at Idle ready for the next frame.
//
// A FrameController is safe for concurrent use, though frames are
// inherently sequential.
type FrameController struct {
	bridge     *Bridge
	dispatcher *Dispatcher
	surface    *RegisteredSurface

	syncTimeout time.Duration

	mu     sync.Mutex
	state  FrameState
	handle *SurfaceWriteHandle
	frame  uint64
}

// NewFrameController creates a controller for surface.
func NewFrameController(bridge *Bridge, dispatcher *Dispatcher, surface *RegisteredSurface, opts ...FrameOption) (*FrameController, error) {
	if bridge == nil || dispatcher == nil || surface == nil {
		return nil, fmt.Errorf("%w: frame controller needs a bridge, dispatcher and surface", ErrIllegalState)
	}
	f := &FrameController{
		bridge:     bridge,
		dispatcher: dispatcher,
		surface:    surface,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State returns the current frame state.
func (f *FrameController) State() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Frame returns the number of frames started.
func (f *FrameController) Frame() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

// Map begins a frame by mapping the surface for writing.
// Idle -> Mapped. If the map fails the frame never starts and the
// controller stays Idle.
func (f *FrameController) Map() (*SurfaceWriteHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FrameIdle {
		return nil, fmt.Errorf("%w: Map in state %s", ErrIllegalState, f.state)
	}
	h, err := f.bridge.MapForWriting(f.surface)
	if err != nil {
		return nil, err
	}
	f.state = FrameMapped
	f.handle = h
	f.frame++
	return h, nil
}

// Submit launches kernel against the current frame's write handle.
// Mapped -> KernelInFlight. On launch failure the state is unchanged; the
// caller ends the frame with End.
func (f *FrameController) Submit(kernel *Kernel, grid, block [3]uint32, volume *VolumeTexture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FrameMapped {
		return fmt.Errorf("%w: Submit in state %s", ErrIllegalState, f.state)
	}
	if err := f.dispatcher.Launch(grid, block, kernel, f.handle, volume); err != nil {
		return err
	}
	f.state = FrameKernelInFlight
	return nil
}

// Sync blocks until the launched kernel completes.
// KernelInFlight -> Synced. Sync must precede End when a kernel is in
// flight; it is the only mandatory blocking point of a frame. On timeout
// the error wraps ErrSyncTimeout and the state stays KernelInFlight so
// that End can still reclaim the surface.
func (f *FrameController) Sync(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FrameKernelInFlight {
		return fmt.Errorf("%w: Sync in state %s", ErrIllegalState, f.state)
	}

	if f.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.syncTimeout)
		defer cancel()
	}
	if err := f.dispatcher.Wait(ctx); err != nil {
		return err
	}
	f.state = FrameSynced
	return nil
}

// End finishes the frame by unmapping the surface and invalidating the
// frame's write handle. Legal from Mapped, KernelInFlight and Synced;
// ending from KernelInFlight abandons the sync and is logged, since the
// surface contents are then undefined for this frame.
func (f *FrameController) End() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endLocked()
}

func (f *FrameController) endLocked() error {
	switch f.state {
	case FrameMapped, FrameKernelInFlight, FrameSynced:
	default:
		return fmt.Errorf("%w: End in state %s", ErrIllegalState, f.state)
	}
	if f.state == FrameKernelInFlight {
		Logger().Warn("frame ended with kernel still in flight",
			"surface", uint64(f.surface.id), "frame", f.frame)
	}
	f.handle = nil
	if err := f.bridge.Unmap(f.surface); err != nil {
		f.state = FrameIdle
		return err
	}
	f.state = FrameIdle
	return nil
}

// RunFrame performs one complete frame: map, launch, sync, unmap. Any
// failure after a successful map still unmaps the surface before
// returning, so a failed frame is skipped and the next one can start. A
// failed map returns without touching the surface.
func (f *FrameController) RunFrame(ctx context.Context, kernel *Kernel, grid, block [3]uint32, volume *VolumeTexture) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FrameIdle {
		return fmt.Errorf("%w: RunFrame in state %s", ErrIllegalState, f.state)
	}

	h, err := f.bridge.MapForWriting(f.surface)
	if err != nil {
		Logger().Warn("frame skipped: map failed", "surface", uint64(f.surface.id), "error", err)
		return err
	}
	f.state = FrameMapped
	f.handle = h
	f.frame++

	// The surface goes back to the rasterization pipeline no matter what
	// fails below.
	defer func() {
		if endErr := f.endLocked(); endErr != nil {
			Logger().Warn("frame end failed", "surface", uint64(f.surface.id), "error", endErr)
		}
	}()

	if err := f.dispatcher.Launch(grid, block, kernel, h, volume); err != nil {
		Logger().Warn("frame skipped: launch failed",
			"surface", uint64(f.surface.id), "frame", f.frame, "error", err)
		return err
	}
	f.state = FrameKernelInFlight

	syncCtx := ctx
	if f.syncTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, f.syncTimeout)
		defer cancel()
	}
	if err := f.dispatcher.Wait(syncCtx); err != nil {
		Logger().Warn("frame skipped: sync failed",
			"surface", uint64(f.surface.id), "frame", f.frame, "error", err)
		return err
	}
	f.state = FrameSynced
	return nil
}
