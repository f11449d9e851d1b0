package devcore

import "testing"

func TestFilterModeString(t *testing.T) {
	tests := []struct {
		mode FilterMode
		want string
	}{
		{FilterNearest, "nearest"},
		{FilterLinear, "linear"},
		{FilterMode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("FilterMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestAddressModeString(t *testing.T) {
	tests := []struct {
		mode AddressMode
		want string
	}{
		{AddressClampToEdge, "clamp-to-edge"},
		{AddressRepeat, "repeat"},
		{AddressMirrorRepeat, "mirror-repeat"},
		{AddressClampToBorder, "clamp-to-border"},
		{AddressMode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("AddressMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestElementTypeInteger(t *testing.T) {
	if ElementFloat32.Integer() {
		t.Error("ElementFloat32.Integer() = true, want false")
	}
	if !ElementUint8.Integer() {
		t.Error("ElementUint8.Integer() = false, want true")
	}
	if !ElementUint16.Integer() {
		t.Error("ElementUint16.Integer() = false, want true")
	}
}

func TestPixelFormatBytesPerPixel(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{PixelRGBA8, 4},
		{PixelBGRA8, 4},
		{PixelFormat(99), 0},
	}
	for _, tt := range tests {
		if got := tt.format.BytesPerPixel(); got != tt.want {
			t.Errorf("%v.BytesPerPixel() = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestAccessFlagString(t *testing.T) {
	if got := AccessWriteDiscard.String(); got != "write-discard" {
		t.Errorf("AccessWriteDiscard.String() = %q", got)
	}
	if got := AccessWritePreserve.String(); got != "write-preserve" {
		t.Errorf("AccessWritePreserve.String() = %q", got)
	}
}
