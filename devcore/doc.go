// Package devcore defines the backend-agnostic contract between the
// user-facing interop package and the device backends.
//
// A backend implements the Adapter interface over whatever device API it
// targets (a GPU driver, or plain host memory for the software backend).
// Resources are referenced by opaque uint64 IDs so that no backend handle
// ever crosses the package boundary; InvalidID (zero) is never a valid
// resource.
//
// The kernel-side types (ThreadID, Target, Sampler, KernelFunc) describe
// what a compute kernel sees during execution: its position in the launch
// grid, the write-only render target it fills, and the read-only volume it
// may sample.
package devcore
