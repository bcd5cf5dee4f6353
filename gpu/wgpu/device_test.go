package wgpu

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/shuntia/lunaris-api/gpu"
)

func TestConvertTextureFormat(t *testing.T) {
	tests := []struct {
		name   string
		format gpu.TextureFormat
		want   gputypes.TextureFormat
		ok     bool
	}{
		{"rgba8", gpu.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8Unorm, true},
		{"rgba8 srgb", gpu.TextureFormatRGBA8UnormSRGB, gputypes.TextureFormatRGBA8UnormSrgb, true},
		{"r8", gpu.TextureFormatR8Unorm, gputypes.TextureFormatR8Unorm, true},
		{"unknown", gpu.TextureFormat(99), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertTextureFormat(tt.format)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvertTextureUsage(t *testing.T) {
	got := convertTextureUsage(gpu.TextureUsageCopySrc | gpu.TextureUsageTextureBinding)
	if got&gputypes.TextureUsageCopySrc == 0 {
		t.Error("CopySrc not carried over")
	}
	if got&gputypes.TextureUsageTextureBinding == 0 {
		t.Error("TextureBinding not carried over")
	}
	if got&gputypes.TextureUsageCopyDst != 0 {
		t.Error("CopyDst set without being requested")
	}
}

func TestNewDeviceAdapterIDsStartAtOne(t *testing.T) {
	a := NewDeviceAdapter(nil, nil)
	if id := a.newID(); id != 1 {
		t.Errorf("first ID = %d, want 1", id)
	}
	if a.RowAlignment() != 256 {
		t.Errorf("row alignment = %d, want 256", a.RowAlignment())
	}
}
