package interop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/interop/backend/native"
	"github.com/gogpu/interop/devcore"
)

// fillKernel writes a constant texel at the thread's position.
func fillKernel(c devcore.Texel) devcore.KernelFunc {
	return func(id devcore.ThreadID, dst devcore.Target, _ devcore.Sampler) {
		dst.Store(id.X, id.Y, c)
	}
}

type frameRig struct {
	adapter *native.Adapter
	bridge  *Bridge
	surf    *RegisteredSurface
	buf     *native.PixelBuffer
	disp    *Dispatcher
	ctrl    *FrameController
}

func newFrameRig(t *testing.T, w, h uint32, opts ...FrameOption) *frameRig {
	t.Helper()
	adapter := native.NewAdapter()
	t.Cleanup(func() { adapter.Close() })

	bridge, surf, buf := newTestSurface(t, adapter, w, h)
	disp, err := NewDispatcher(adapter)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	ctrl, err := NewFrameController(bridge, disp, surf, opts...)
	if err != nil {
		t.Fatalf("NewFrameController: %v", err)
	}
	return &frameRig{adapter: adapter, bridge: bridge, surf: surf, buf: buf, disp: disp, ctrl: ctrl}
}

func TestFrameStateString(t *testing.T) {
	tests := []struct {
		state FrameState
		want  string
	}{
		{FrameIdle, "idle"},
		{FrameMapped, "mapped"},
		{FrameKernelInFlight, "kernel-in-flight"},
		{FrameSynced, "synced"},
		{FrameState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("FrameState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestFrameStepwiseCycle(t *testing.T) {
	rig := newFrameRig(t, 4, 4)
	kernel, err := LoadKernel(rig.adapter, KernelSpec{Label: "fill", Func: fillKernel(devcore.Texel{1, 2, 3, 4})})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	one := [3]uint32{1, 1, 1}

	if got := rig.ctrl.State(); got != FrameIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}

	if _, err := rig.ctrl.Map(); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if got := rig.ctrl.State(); got != FrameMapped {
		t.Fatalf("state after Map = %v, want mapped", got)
	}

	if err := rig.ctrl.Submit(kernel, [3]uint32{4, 4, 1}, one, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := rig.ctrl.State(); got != FrameKernelInFlight {
		t.Fatalf("state after Submit = %v, want kernel-in-flight", got)
	}

	if err := rig.ctrl.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := rig.ctrl.State(); got != FrameSynced {
		t.Fatalf("state after Sync = %v, want synced", got)
	}

	if err := rig.ctrl.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := rig.ctrl.State(); got != FrameIdle {
		t.Fatalf("state after End = %v, want idle", got)
	}
	if got := rig.surf.State(); got != SurfaceUnmapped {
		t.Fatalf("surface state after End = %v, want unmapped", got)
	}
	if rig.ctrl.Frame() != 1 {
		t.Errorf("Frame() = %d, want 1", rig.ctrl.Frame())
	}
}

func TestFrameIllegalTransitions(t *testing.T) {
	rig := newFrameRig(t, 4, 4)
	kernel, err := LoadKernel(rig.adapter, KernelSpec{Label: "nop", Func: nopKernel})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	one := [3]uint32{1, 1, 1}

	// Nothing but Map is legal from idle.
	if err := rig.ctrl.Submit(kernel, one, one, nil); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Submit from idle = %v, want ErrIllegalState", err)
	}
	if err := rig.ctrl.Sync(context.Background()); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Sync from idle = %v, want ErrIllegalState", err)
	}
	if err := rig.ctrl.End(); !errors.Is(err, ErrIllegalState) {
		t.Errorf("End from idle = %v, want ErrIllegalState", err)
	}

	if _, err := rig.ctrl.Map(); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if _, err := rig.ctrl.Map(); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Map from mapped = %v, want ErrIllegalState", err)
	}
	if err := rig.ctrl.Sync(context.Background()); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Sync from mapped = %v, want ErrIllegalState", err)
	}

	// Mapped frames can end without a launch.
	if err := rig.ctrl.End(); err != nil {
		t.Fatalf("End from mapped: %v", err)
	}
	if got := rig.ctrl.State(); got != FrameIdle {
		t.Errorf("state after End = %v, want idle", got)
	}
}

func TestFrameSubmitFailureKeepsMapped(t *testing.T) {
	rig := newFrameRig(t, 4, 4)
	kernel, err := LoadKernel(rig.adapter, KernelSpec{Label: "nop", Func: nopKernel})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}

	if _, err := rig.ctrl.Map(); err != nil {
		t.Fatalf("Map: %v", err)
	}
	// Zero grid axis fails validation; the frame stays mapped so the
	// caller can still End it.
	if err := rig.ctrl.Submit(kernel, [3]uint32{0, 1, 1}, [3]uint32{1, 1, 1}, nil); !errors.Is(err, ErrLaunch) {
		t.Fatalf("Submit with bad grid = %v, want ErrLaunch", err)
	}
	if got := rig.ctrl.State(); got != FrameMapped {
		t.Errorf("state after failed Submit = %v, want mapped", got)
	}
	if err := rig.ctrl.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := rig.surf.State(); got != SurfaceUnmapped {
		t.Errorf("surface not returned to pipeline, state = %v", got)
	}
}

func TestRunFrameWritesConstantColor(t *testing.T) {
	rig := newFrameRig(t, 8, 8)
	c := devcore.Texel{200, 100, 50, 255}
	kernel, err := LoadKernel(rig.adapter, KernelSpec{Label: "fill", Func: fillKernel(c)})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}

	// 2x2 blocks of 4x4 threads cover the 8x8 surface exactly.
	err = rig.ctrl.RunFrame(context.Background(), kernel, [3]uint32{2, 2, 1}, [3]uint32{4, 4, 1}, nil)
	if err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if got := rig.ctrl.State(); got != FrameIdle {
		t.Fatalf("state after RunFrame = %v, want idle", got)
	}
	if got := rig.surf.State(); got != SurfaceUnmapped {
		t.Fatalf("surface state after RunFrame = %v, want unmapped", got)
	}

	rig.buf.BeginRead()
	defer rig.buf.EndRead()
	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 8; x++ {
			if got := rig.buf.At(x, y); got != c {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, c)
			}
		}
	}
}

func TestRunFrameSkipsOnMapFailure(t *testing.T) {
	rig := newFrameRig(t, 4, 4)
	kernel, err := LoadKernel(rig.adapter, KernelSpec{Label: "nop", Func: nopKernel})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	one := [3]uint32{1, 1, 1}

	// An in-flight raster read makes the map fail; the frame is skipped
	// without an unmap.
	rig.buf.BeginRead()
	err = rig.ctrl.RunFrame(context.Background(), kernel, one, one, nil)
	if !errors.Is(err, ErrMap) {
		t.Fatalf("RunFrame during read = %v, want ErrMap", err)
	}
	rig.buf.EndRead()

	if got := rig.ctrl.State(); got != FrameIdle {
		t.Errorf("state after skipped frame = %v, want idle", got)
	}
	if rig.ctrl.Frame() != 0 {
		t.Errorf("skipped frame should not count, Frame() = %d", rig.ctrl.Frame())
	}

	// The next frame proceeds normally.
	if err := rig.ctrl.RunFrame(context.Background(), kernel, one, one, nil); err != nil {
		t.Errorf("RunFrame after skip: %v", err)
	}
}

func TestRunFrameUnmapsOnLaunchFailure(t *testing.T) {
	rig := newFrameRig(t, 4, 4)
	kernel, err := LoadKernel(rig.adapter, KernelSpec{Label: "nop", Func: nopKernel})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}

	err = rig.ctrl.RunFrame(context.Background(), kernel, [3]uint32{0, 0, 0}, [3]uint32{1, 1, 1}, nil)
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("RunFrame with bad grid = %v, want ErrLaunch", err)
	}
	// The failed launch short-circuits to an immediate unmap.
	if got := rig.surf.State(); got != SurfaceUnmapped {
		t.Errorf("surface state after failed launch = %v, want unmapped", got)
	}
	if got := rig.ctrl.State(); got != FrameIdle {
		t.Errorf("controller state = %v, want idle", got)
	}
}

func TestRunFrameUnmapsOnKernelPanic(t *testing.T) {
	rig := newFrameRig(t, 4, 4)
	kernel, err := LoadKernel(rig.adapter, KernelSpec{
		Label: "panics",
		Func: func(_ devcore.ThreadID, _ devcore.Target, _ devcore.Sampler) {
			panic("boom")
		},
	})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	one := [3]uint32{1, 1, 1}

	err = rig.ctrl.RunFrame(context.Background(), kernel, one, one, nil)
	if !errors.Is(err, ErrSync) {
		t.Fatalf("RunFrame with panicking kernel = %v, want ErrSync", err)
	}
	if got := rig.surf.State(); got != SurfaceUnmapped {
		t.Errorf("surface state after failed frame = %v, want unmapped", got)
	}
}

func TestSyncTimeout(t *testing.T) {
	rig := newFrameRig(t, 4, 4, WithSyncTimeout(5*time.Millisecond))
	kernel, err := LoadKernel(rig.adapter, KernelSpec{
		Label: "slow",
		Func: func(_ devcore.ThreadID, _ devcore.Target, _ devcore.Sampler) {
			time.Sleep(200 * time.Millisecond)
		},
	})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	one := [3]uint32{1, 1, 1}

	err = rig.ctrl.RunFrame(context.Background(), kernel, one, one, nil)
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatalf("RunFrame with slow kernel = %v, want ErrSyncTimeout", err)
	}
	// Even on timeout the surface goes back to the pipeline.
	if got := rig.surf.State(); got != SurfaceUnmapped {
		t.Errorf("surface state after timeout = %v, want unmapped", got)
	}
}

func TestRunFrameSamplesVolume(t *testing.T) {
	rig := newFrameRig(t, 4, 4)

	// 2x2x2 field with values 0..7; the trilinear blend at the volume
	// center averages all eight corners to 3.5.
	data, err := NewVolumeData([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	if err != nil {
		t.Fatalf("NewVolumeData: %v", err)
	}
	vol, err := NewVolumeTexture(rig.adapter, data, DefaultSamplerConfig())
	if err != nil {
		t.Fatalf("NewVolumeTexture: %v", err)
	}
	defer vol.Destroy()

	kernel, err := LoadKernel(rig.adapter, KernelSpec{
		Label:         "sample_center",
		SamplesVolume: true,
		Func: func(id devcore.ThreadID, dst devcore.Target, vol devcore.Sampler) {
			v := vol.Sample(0.5, 0.5, 0.5)
			dst.Store(id.X, id.Y, devcore.Texel{uint8(v*10 + 0.5), 0, 0, 255})
		},
	})
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}

	err = rig.ctrl.RunFrame(context.Background(), kernel, [3]uint32{1, 1, 1}, [3]uint32{4, 4, 1}, vol)
	if err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	rig.buf.BeginRead()
	defer rig.buf.EndRead()
	want := devcore.Texel{35, 0, 0, 255} // 3.5 scaled by 10
	for y := uint32(0); y < 4; y++ {
		for x := uint32(0); x < 4; x++ {
			if got := rig.buf.At(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}
