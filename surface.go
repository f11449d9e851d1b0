package interop

import (
	"fmt"
	"sync"

	"github.com/gogpu/interop/devcore"
)

// SurfaceState is the ownership state of a registered surface.
type SurfaceState int

const (
	// SurfaceUnmapped means the external rasterization pipeline owns the
	// surface.
	SurfaceUnmapped SurfaceState = iota
	// SurfaceMapped means compute holds exclusive write access.
	SurfaceMapped
)

func (s SurfaceState) String() string {
	switch s {
	case SurfaceUnmapped:
		return "unmapped"
	case SurfaceMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// SurfaceConfig describes an external render target at registration.
type SurfaceConfig struct {
	Label  string
	Width  uint32
	Height uint32
	Format devcore.PixelFormat
	// Access defaults to write-discard: mapped contents are undefined
	// until written.
	Access devcore.AccessFlag
}

// Bridge registers externally-owned render targets with a device adapter
// and mediates the per-frame map/unmap ownership handshake.
//
// A Bridge is safe for concurrent use.
type Bridge struct {
	adapter devcore.Adapter

	mu         sync.Mutex
	registered map[any]*RegisteredSurface
}

// NewBridge creates a bridge over adapter.
func NewBridge(adapter devcore.Adapter) (*Bridge, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: nil adapter", ErrRegistration)
	}
	return &Bridge{
		adapter:    adapter,
		registered: make(map[any]*RegisteredSurface),
	}, nil
}

// Register binds an externally-owned render target for compute access.
// The external handle type is backend-specific (a *native.PixelBuffer for
// the software backend, a hal texture for the wgpu backend). Registering
// the same handle twice fails.
func (b *Bridge) Register(external any, cfg SurfaceConfig) (*RegisteredSurface, error) {
	if external == nil {
		return nil, fmt.Errorf("%w: nil external handle", ErrRegistration)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: surface extent %dx%d has a zero axis",
			ErrRegistration, cfg.Width, cfg.Height)
	}
	if cfg.Format.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("%w: pixel format %d", ErrRegistration, cfg.Format)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.registered[external]; ok {
		return nil, fmt.Errorf("%w: handle already registered", ErrRegistration)
	}

	desc := devcore.SurfaceDesc{
		Label:  cfg.Label,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: cfg.Format,
		Access: cfg.Access,
	}
	id, err := b.adapter.RegisterSurface(external, &desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistration, err)
	}

	s := &RegisteredSurface{
		bridge:   b,
		external: external,
		id:       id,
		width:    cfg.Width,
		height:   cfg.Height,
		format:   cfg.Format,
		access:   cfg.Access,
	}
	b.registered[external] = s

	Logger().Info("surface registered",
		"id", uint64(id),
		"extent", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"format", cfg.Format.String())
	return s, nil
}

// Unregister releases the compute binding of s. The external target itself
// is not destroyed; it remains owned by the rasterization pipeline.
// Fails if s is mapped or not currently registered. A resized external
// target is handled by Unregister followed by Register with the new
// dimensions.
func (b *Bridge) Unregister(s *RegisteredSurface) error {
	if s == nil {
		return fmt.Errorf("%w: nil surface", ErrIllegalState)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registered[s.external] != s {
		return fmt.Errorf("%w: surface not registered", ErrIllegalState)
	}

	s.mu.Lock()
	if s.state == SurfaceMapped {
		s.mu.Unlock()
		return fmt.Errorf("%w: surface is mapped", ErrIllegalState)
	}
	s.unregistered = true
	s.mu.Unlock()

	if err := b.adapter.UnregisterSurface(s.id); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalState, err)
	}
	delete(b.registered, s.external)
	Logger().Info("surface unregistered", "id", uint64(s.id))
	return nil
}

// MapForWriting acquires exclusive compute access to s for one frame.
// Fails if s is already mapped or the external pipeline holds an
// in-flight read. The returned handle is valid until Unmap.
func (b *Bridge) MapForWriting(s *RegisteredSurface) (*SurfaceWriteHandle, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil surface", ErrMap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unregistered {
		return nil, fmt.Errorf("%w: surface unregistered", ErrMap)
	}
	if s.state == SurfaceMapped {
		return nil, fmt.Errorf("%w: surface already mapped", ErrMap)
	}

	if err := b.adapter.MapSurface(s.id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMap, err)
	}
	s.state = SurfaceMapped
	s.generation++

	Logger().Debug("surface mapped", "id", uint64(s.id), "generation", s.generation)
	return &SurfaceWriteHandle{surface: s, generation: s.generation}, nil
}

// Unmap returns ownership of s to the rasterization pipeline and
// invalidates every handle from the current map. Fails if s is not
// mapped.
func (b *Bridge) Unmap(s *RegisteredSurface) error {
	if s == nil {
		return fmt.Errorf("%w: nil surface", ErrIllegalState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SurfaceMapped {
		return fmt.Errorf("%w: surface not mapped", ErrIllegalState)
	}

	if err := b.adapter.UnmapSurface(s.id); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalState, err)
	}
	s.state = SurfaceUnmapped

	Logger().Debug("surface unmapped", "id", uint64(s.id))
	return nil
}

// RegisteredSurface is an externally-owned render target bound for
// compute access. Dimensions and format are fixed at registration.
type RegisteredSurface struct {
	bridge   *Bridge
	external any
	id       devcore.SurfaceID
	width    uint32
	height   uint32
	format   devcore.PixelFormat
	access   devcore.AccessFlag

	mu           sync.Mutex
	state        SurfaceState
	generation   uint64
	unregistered bool
}

// ID returns the backend resource ID.
func (s *RegisteredSurface) ID() devcore.SurfaceID { return s.id }

// Width returns the surface width in pixels.
func (s *RegisteredSurface) Width() uint32 { return s.width }

// Height returns the surface height in pixels.
func (s *RegisteredSurface) Height() uint32 { return s.height }

// Format returns the pixel format.
func (s *RegisteredSurface) Format() devcore.PixelFormat { return s.format }

// State returns the current ownership state.
func (s *RegisteredSurface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SurfaceWriteHandle is an ephemeral write capability for one mapped
// frame. It becomes invalid at the surface's next Unmap and must not be
// retained across frames.
type SurfaceWriteHandle struct {
	surface    *RegisteredSurface
	generation uint64
}

// Surface returns the surface this handle writes to.
func (h *SurfaceWriteHandle) Surface() *RegisteredSurface { return h.surface }

// Valid reports whether the handle still belongs to the current map.
func (h *SurfaceWriteHandle) Valid() bool {
	if h == nil || h.surface == nil {
		return false
	}
	h.surface.mu.Lock()
	defer h.surface.mu.Unlock()
	return h.surface.state == SurfaceMapped && h.surface.generation == h.generation
}
