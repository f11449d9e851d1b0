package devcore

// Resource IDs
//
// Backends hand out opaque IDs for every resource they own. IDs are
// process-unique per backend instance and never reused.

// VolumeID identifies an immutable 3D sampling resource.
type VolumeID uint64

// SurfaceID identifies a registered external render target.
type SurfaceID uint64

// KernelID identifies a loaded compute kernel.
type KernelID uint64

// InvalidID is the zero value for all resource ID types.
const InvalidID = 0

// FilterMode selects how a volume is reconstructed between lattice points.
type FilterMode uint8

const (
	// FilterNearest returns the value of the nearest lattice point.
	FilterNearest FilterMode = iota
	// FilterLinear blends the 8 nearest lattice points (trilinear).
	FilterLinear
)

func (m FilterMode) String() string {
	switch m {
	case FilterNearest:
		return "nearest"
	case FilterLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// AddressMode selects how out-of-range coordinates resolve, per axis.
type AddressMode uint8

const (
	// AddressClampToEdge clamps to the first/last lattice point.
	AddressClampToEdge AddressMode = iota
	// AddressRepeat wraps coordinates around the volume extent.
	AddressRepeat
	// AddressMirrorRepeat reflects coordinates at the volume edges.
	AddressMirrorRepeat
	// AddressClampToBorder returns a fixed border value outside the volume.
	AddressClampToBorder
)

func (m AddressMode) String() string {
	switch m {
	case AddressClampToEdge:
		return "clamp-to-edge"
	case AddressRepeat:
		return "repeat"
	case AddressMirrorRepeat:
		return "mirror-repeat"
	case AddressClampToBorder:
		return "clamp-to-border"
	default:
		return "unknown"
	}
}

// ReadMode selects how fetched elements are presented to the kernel.
type ReadMode uint8

const (
	// ReadElement returns elements in their stored type.
	ReadElement ReadMode = iota
	// ReadNormalizedFloat maps integer elements to [0,1] (unsigned) or
	// [-1,1] (signed). Only valid for integer element types.
	ReadNormalizedFloat
)

func (m ReadMode) String() string {
	switch m {
	case ReadElement:
		return "element"
	case ReadNormalizedFloat:
		return "normalized-float"
	default:
		return "unknown"
	}
}

// ElementType is the storage type of volume elements.
type ElementType uint8

const (
	// ElementFloat32 is a 32-bit float per element.
	ElementFloat32 ElementType = iota
	// ElementUint8 is an unsigned 8-bit integer per element.
	ElementUint8
	// ElementUint16 is an unsigned 16-bit integer per element.
	ElementUint16
)

func (t ElementType) String() string {
	switch t {
	case ElementFloat32:
		return "float32"
	case ElementUint8:
		return "uint8"
	case ElementUint16:
		return "uint16"
	default:
		return "unknown"
	}
}

// Integer reports whether the element type stores integers.
func (t ElementType) Integer() bool {
	return t == ElementUint8 || t == ElementUint16
}

// PixelFormat is the channel layout of a registered surface.
type PixelFormat uint8

const (
	// PixelRGBA8 is 8 bits per channel, R first.
	PixelRGBA8 PixelFormat = iota
	// PixelBGRA8 is 8 bits per channel, B first.
	PixelBGRA8
)

func (f PixelFormat) String() string {
	switch f {
	case PixelRGBA8:
		return "rgba8"
	case PixelBGRA8:
		return "bgra8"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the byte size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelRGBA8, PixelBGRA8:
		return 4
	default:
		return 0
	}
}

// AccessFlag declares how mapped surface contents relate to prior contents.
type AccessFlag uint8

const (
	// AccessWriteDiscard maps the surface for writing without preserving
	// prior contents. Reading before writing yields undefined data.
	AccessWriteDiscard AccessFlag = iota
	// AccessWritePreserve maps the surface for writing with prior contents
	// intact.
	AccessWritePreserve
)

func (f AccessFlag) String() string {
	switch f {
	case AccessWriteDiscard:
		return "write-discard"
	case AccessWritePreserve:
		return "write-preserve"
	default:
		return "unknown"
	}
}
