package native

import (
	"math"

	"github.com/gogpu/interop/devcore"
)

// volume is a host-memory 3D field with fixed sampling configuration. It
// implements devcore.Sampler with the filtering and addressing rules of a
// device texture unit.
type volume struct {
	data    []float32
	width   int
	height  int
	depth   int
	sampler devcore.SamplerDesc
}

func (v *volume) fetch(i, j, k int) float32 {
	var ok bool
	if i, ok = resolve(i, v.width, v.sampler.AddressU); !ok {
		return v.sampler.Border
	}
	if j, ok = resolve(j, v.height, v.sampler.AddressV); !ok {
		return v.sampler.Border
	}
	if k, ok = resolve(k, v.depth, v.sampler.AddressW); !ok {
		return v.sampler.Border
	}
	return v.data[(k*v.height+j)*v.width+i]
}

// resolve maps a lattice index onto [0, n) per the address mode. The
// second result is false when clamp-to-border puts the index outside the
// volume.
func resolve(i, n int, mode devcore.AddressMode) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch mode {
	case devcore.AddressRepeat:
		i %= n
		if i < 0 {
			i += n
		}
		return i, true
	case devcore.AddressMirrorRepeat:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i, true
	case devcore.AddressClampToBorder:
		return 0, false
	default: // clamp to edge
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	}
}

// Sample fetches a filtered value at (u, v, w).
//
// With normalized coordinates the texel centers sit at (i+0.5)/extent, so
// linear filtering first maps u to u*extent-0.5 before taking the two
// neighboring lattice points per axis; nearest filtering takes
// floor(u*extent). Element-space coordinates skip the extent scaling.
func (v *volume) Sample(u, vv, w float32) float32 {
	x, y, z := float64(u), float64(vv), float64(w)
	if v.sampler.Normalized {
		x *= float64(v.width)
		y *= float64(v.height)
		z *= float64(v.depth)
	}

	if v.sampler.Filter == devcore.FilterNearest {
		return v.fetch(int(math.Floor(x)), int(math.Floor(y)), int(math.Floor(z)))
	}

	x -= 0.5
	y -= 0.5
	z -= 0.5
	i0, j0, k0 := int(math.Floor(x)), int(math.Floor(y)), int(math.Floor(z))
	fx := float32(x - math.Floor(x))
	fy := float32(y - math.Floor(y))
	fz := float32(z - math.Floor(z))

	// Trilinear blend of the 8 surrounding lattice points.
	c000 := v.fetch(i0, j0, k0)
	c100 := v.fetch(i0+1, j0, k0)
	c010 := v.fetch(i0, j0+1, k0)
	c110 := v.fetch(i0+1, j0+1, k0)
	c001 := v.fetch(i0, j0, k0+1)
	c101 := v.fetch(i0+1, j0, k0+1)
	c011 := v.fetch(i0, j0+1, k0+1)
	c111 := v.fetch(i0+1, j0+1, k0+1)

	c00 := lerp(c000, c100, fx)
	c10 := lerp(c010, c110, fx)
	c01 := lerp(c001, c101, fx)
	c11 := lerp(c011, c111, fx)
	c0 := lerp(c00, c10, fy)
	c1 := lerp(c01, c11, fy)
	return lerp(c0, c1, fz)
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// normalizeScale returns the divisor normalized-float reads apply at
// upload, or 1 when elements pass through unchanged.
func normalizeScale(elem devcore.ElementType, read devcore.ReadMode) float32 {
	if read != devcore.ReadNormalizedFloat {
		return 1
	}
	switch elem {
	case devcore.ElementUint8:
		return 255
	case devcore.ElementUint16:
		return 65535
	default:
		return 1
	}
}
