package native

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/interop/devcore"
)

// PixelBuffer is a host-memory render target owned by the rasterization
// side. It stands in for a swapchain or framebuffer texture: the raster
// pipeline reads it between frames, compute writes it while mapped.
//
// The raster side brackets its reads with BeginRead/EndRead; a surface
// map fails while a read is in flight.
type PixelBuffer struct {
	width  uint32
	height uint32
	format devcore.PixelFormat
	pix    []byte

	readers atomic.Int32
}

// NewPixelBuffer allocates a width x height buffer in format.
func NewPixelBuffer(width, height uint32, format devcore.PixelFormat) (*PixelBuffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: pixel buffer extent %dx%d", ErrBadDescriptor, width, height)
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: pixel format %d", ErrBadDescriptor, format)
	}
	return &PixelBuffer{
		width:  width,
		height: height,
		format: format,
		pix:    make([]byte, int(width)*int(height)*bpp),
	}, nil
}

// Width returns the buffer width in pixels.
func (p *PixelBuffer) Width() uint32 { return p.width }

// Height returns the buffer height in pixels.
func (p *PixelBuffer) Height() uint32 { return p.height }

// Format returns the pixel format.
func (p *PixelBuffer) Format() devcore.PixelFormat { return p.format }

// Pix returns the raw pixel storage, row-major, no padding. The raster
// side must not touch it while the buffer is mapped for compute.
func (p *PixelBuffer) Pix() []byte { return p.pix }

// BeginRead marks the start of a raster-side read of the buffer.
func (p *PixelBuffer) BeginRead() { p.readers.Add(1) }

// EndRead marks the end of a raster-side read.
func (p *PixelBuffer) EndRead() { p.readers.Add(-1) }

// reading reports whether a raster-side read is in flight.
func (p *PixelBuffer) reading() bool { return p.readers.Load() > 0 }

// At returns the pixel at (x, y) in RGBA channel order regardless of the
// storage format.
func (p *PixelBuffer) At(x, y uint32) devcore.Texel {
	i := (int(y)*int(p.width) + int(x)) * p.format.BytesPerPixel()
	var t devcore.Texel
	switch p.format {
	case devcore.PixelBGRA8:
		t = devcore.Texel{p.pix[i+2], p.pix[i+1], p.pix[i], p.pix[i+3]}
	default:
		copy(t[:], p.pix[i:i+4])
	}
	return t
}

// target is the devcore.Target view of a mapped pixel buffer. Stores
// outside the extent are discarded, matching out-of-bounds image stores
// on a device.
type target struct {
	buf *PixelBuffer
}

func (t target) Extent() (uint32, uint32) { return t.buf.width, t.buf.height }

func (t target) Store(x, y uint32, texel devcore.Texel) {
	if x >= t.buf.width || y >= t.buf.height {
		return
	}
	i := (int(y)*int(t.buf.width) + int(x)) * t.buf.format.BytesPerPixel()
	switch t.buf.format {
	case devcore.PixelBGRA8:
		t.buf.pix[i] = texel[2]
		t.buf.pix[i+1] = texel[1]
		t.buf.pix[i+2] = texel[0]
		t.buf.pix[i+3] = texel[3]
	default:
		copy(t.buf.pix[i:i+4], texel[:])
	}
}
