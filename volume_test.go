package interop

import (
	"errors"
	"testing"

	"github.com/gogpu/interop/backend/native"
	"github.com/gogpu/interop/devcore"
)

func TestNewVolumeData(t *testing.T) {
	tests := []struct {
		name    string
		values  int
		w, h, d uint32
		wantErr bool
	}{
		{"exact fit", 8, 2, 2, 2, false},
		{"single element", 1, 1, 1, 1, false},
		{"too few values", 7, 2, 2, 2, true},
		{"too many values", 9, 2, 2, 2, true},
		{"zero axis", 0, 2, 0, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVolumeData(make([]float32, tt.values), tt.w, tt.h, tt.d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVolumeData() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrFormat) {
				t.Errorf("error should wrap ErrFormat, got %v", err)
			}
		})
	}
}

func TestVolumeDataAt(t *testing.T) {
	data, err := NewVolumeData([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	if err != nil {
		t.Fatalf("NewVolumeData: %v", err)
	}
	if got := data.At(1, 0, 0); got != 1 {
		t.Errorf("At(1,0,0) = %v, want 1", got)
	}
	if got := data.At(0, 1, 0); got != 2 {
		t.Errorf("At(0,1,0) = %v, want 2", got)
	}
	if got := data.At(1, 1, 1); got != 7 {
		t.Errorf("At(1,1,1) = %v, want 7", got)
	}
}

func TestNewVolumeTexture(t *testing.T) {
	adapter := native.NewAdapter()
	defer adapter.Close()

	data, err := NewVolumeData(make([]float32, 8), 2, 2, 2)
	if err != nil {
		t.Fatalf("NewVolumeData: %v", err)
	}

	vol, err := NewVolumeTexture(adapter, data, DefaultSamplerConfig())
	if err != nil {
		t.Fatalf("NewVolumeTexture: %v", err)
	}
	if vol.ID() == devcore.InvalidID {
		t.Error("created volume has invalid ID")
	}
	if vol.Width() != 2 || vol.Height() != 2 || vol.Depth() != 2 {
		t.Errorf("volume extent = %dx%dx%d, want 2x2x2", vol.Width(), vol.Height(), vol.Depth())
	}

	vol.Destroy()
	if vol.ID() != devcore.InvalidID {
		t.Error("destroyed volume should report InvalidID")
	}
	// Second destroy is a no-op.
	vol.Destroy()
}

func TestNewVolumeTextureRejectsBadConfig(t *testing.T) {
	adapter := native.NewAdapter()
	defer adapter.Close()

	data, err := NewVolumeData(make([]float32, 8), 2, 2, 2)
	if err != nil {
		t.Fatalf("NewVolumeData: %v", err)
	}

	// Normalized-float read of float32 elements is rejected before upload.
	cfg, err := NewSamplerConfig(SamplerOptions{Read: devcore.ReadNormalizedFloat})
	if err != nil {
		t.Fatalf("NewSamplerConfig: %v", err)
	}
	if _, err := NewVolumeTexture(adapter, data, cfg); !errors.Is(err, ErrFormat) {
		t.Errorf("NewVolumeTexture with normalized-float read = %v, want ErrFormat", err)
	}

	var zero SamplerConfig
	if _, err := NewVolumeTexture(adapter, data, zero); !errors.Is(err, ErrFormat) {
		t.Errorf("NewVolumeTexture with zero config = %v, want ErrFormat", err)
	}
}

func TestNewVolumeTextureAllocationFailure(t *testing.T) {
	// Budget below the 32-byte upload forces the allocation path to fail.
	adapter := native.NewAdapter(native.WithMemoryBudget(16))
	defer adapter.Close()

	data, err := NewVolumeData(make([]float32, 8), 2, 2, 2)
	if err != nil {
		t.Fatalf("NewVolumeData: %v", err)
	}
	if _, err := NewVolumeTexture(adapter, data, DefaultSamplerConfig()); !errors.Is(err, ErrAllocation) {
		t.Errorf("NewVolumeTexture over budget = %v, want ErrAllocation", err)
	}
}
