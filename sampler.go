package interop

import (
	"fmt"
	"math"

	"github.com/gogpu/interop/devcore"
)

// SamplerOptions specifies how a volume is sampled. The zero value means
// element-space coordinates, nearest filtering, clamp-to-edge addressing
// on all axes, and element reads.
type SamplerOptions struct {
	// Normalized selects [0,1) texture coordinates instead of element
	// coordinates.
	Normalized bool
	// Filter is the reconstruction filter.
	Filter devcore.FilterMode
	// AddressU, AddressV, AddressW resolve out-of-range coordinates per
	// axis.
	AddressU devcore.AddressMode
	AddressV devcore.AddressMode
	AddressW devcore.AddressMode
	// Read is how fetched elements are presented to the kernel.
	Read devcore.ReadMode
	// Border is the value returned by clamp-to-border addressing.
	Border float32
}

// SamplerConfig is an immutable, validated sampling configuration. The
// zero value is not valid; construct with NewSamplerConfig or
// DefaultSamplerConfig.
type SamplerConfig struct {
	opts  SamplerOptions
	valid bool
}

// DefaultSamplerConfig returns normalized coordinates, linear filtering,
// clamp-to-edge addressing on all axes, and element reads.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		opts: SamplerOptions{
			Normalized: true,
			Filter:     devcore.FilterLinear,
		},
		valid: true,
	}
}

// NewSamplerConfig validates opts and returns an immutable configuration.
func NewSamplerConfig(opts SamplerOptions) (SamplerConfig, error) {
	if opts.Filter > devcore.FilterLinear {
		return SamplerConfig{}, fmt.Errorf("%w: filter mode %d", ErrFormat, opts.Filter)
	}
	for _, m := range [3]devcore.AddressMode{opts.AddressU, opts.AddressV, opts.AddressW} {
		if m > devcore.AddressClampToBorder {
			return SamplerConfig{}, fmt.Errorf("%w: address mode %d", ErrFormat, m)
		}
	}
	if opts.Read > devcore.ReadNormalizedFloat {
		return SamplerConfig{}, fmt.Errorf("%w: read mode %d", ErrFormat, opts.Read)
	}
	if b := float64(opts.Border); math.IsNaN(b) || math.IsInf(b, 0) {
		return SamplerConfig{}, fmt.Errorf("%w: border value must be finite", ErrFormat)
	}
	return SamplerConfig{opts: opts, valid: true}, nil
}

// Normalized reports whether coordinates are normalized to [0,1).
func (c SamplerConfig) Normalized() bool { return c.opts.Normalized }

// Filter returns the reconstruction filter.
func (c SamplerConfig) Filter() devcore.FilterMode { return c.opts.Filter }

// AddressU returns the addressing mode for the U axis.
func (c SamplerConfig) AddressU() devcore.AddressMode { return c.opts.AddressU }

// AddressV returns the addressing mode for the V axis.
func (c SamplerConfig) AddressV() devcore.AddressMode { return c.opts.AddressV }

// AddressW returns the addressing mode for the W axis.
func (c SamplerConfig) AddressW() devcore.AddressMode { return c.opts.AddressW }

// Read returns the element read mode.
func (c SamplerConfig) Read() devcore.ReadMode { return c.opts.Read }

// Border returns the clamp-to-border value.
func (c SamplerConfig) Border() float32 { return c.opts.Border }

// validateFor checks configuration constraints that depend on the element
// type being sampled.
func (c SamplerConfig) validateFor(elem devcore.ElementType) error {
	if !c.valid {
		return fmt.Errorf("%w: zero-value sampler config", ErrFormat)
	}
	if c.opts.Read == devcore.ReadNormalizedFloat && !elem.Integer() {
		return fmt.Errorf("%w: normalized-float read requires an integer element type, got %s",
			ErrFormat, elem)
	}
	return nil
}

// desc converts the configuration to its backend descriptor.
func (c SamplerConfig) desc() devcore.SamplerDesc {
	return devcore.SamplerDesc{
		Normalized: c.opts.Normalized,
		Filter:     c.opts.Filter,
		AddressU:   c.opts.AddressU,
		AddressV:   c.opts.AddressV,
		AddressW:   c.opts.AddressW,
		Read:       c.opts.Read,
		Border:     c.opts.Border,
	}
}
