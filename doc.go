// Package interop bridges compute kernels and an externally-owned
// rasterization pipeline over a shared device.
//
// The package covers four concerns:
//
//   - VolumeTexture: a static 3D float field uploaded once and exposed to
//     kernels as a filtered, address-mode-aware, read-only sampling
//     resource.
//   - Bridge: registration of externally-owned 2D render targets and the
//     per-frame map/unmap ownership handshake that hands them to compute
//     and back.
//   - Dispatcher: validated, non-blocking kernel launches against a mapped
//     surface.
//   - FrameController: the per-frame state machine
//     (Idle -> Mapped -> KernelInFlight -> Synced -> Idle) that guarantees
//     a mapped surface is always returned to the rasterization pipeline,
//     even when a launch or sync fails.
//
// Device work goes through the devcore.Adapter interface. Package
// backend/native is a pure-Go adapter used in tests and headless tools;
// package backend/wgpu runs on a real device via wgpu/hal and can share a
// device with an existing rasterization context.
//
// The package produces no log output by default; see SetLogger.
package interop
