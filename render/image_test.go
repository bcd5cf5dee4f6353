package render

import (
	"bytes"
	"errors"
	"testing"

	lunaris "github.com/shuntia/lunaris-api"
)

func TestFromBytesLengthCheck(t *testing.T) {
	tests := []struct {
		name    string
		format  PixelFormat
		w, h    uint32
		dataLen int
		wantErr bool
	}{
		{"rgba exact", PixelFormatRGBA8Unorm, 2, 2, 16, false},
		{"gray exact", PixelFormatGray8, 3, 3, 9, false},
		{"too short", PixelFormatRGBA8Unorm, 2, 2, 15, true},
		{"too long", PixelFormatGray8, 2, 2, 5, true},
		{"zero area", PixelFormatRGBA8Unorm, 0, 4, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromBytes(tt.format, tt.w, tt.h, make([]byte, tt.dataLen))
			if tt.wantErr {
				if !errors.Is(err, lunaris.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestZeroed(t *testing.T) {
	b := Zeroed(PixelFormatRGBA8Unorm, 3, 2)
	if b.Len() != 24 {
		t.Errorf("expected 24 bytes, got %d", b.Len())
	}
	for i, v := range b.Bytes() {
		if v != 0 {
			t.Fatalf("byte %d not zero", i)
		}
	}
}

func TestOverlaySaturates(t *testing.T) {
	a, _ := FromBytes(PixelFormatGray8, 2, 1, []byte{200, 10})
	b, _ := FromBytes(PixelFormatGray8, 2, 1, []byte{200, 20})

	out, err := a.Overlay(b)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{255, 30}) {
		t.Errorf("expected [255 30], got %v", out.Bytes())
	}
	// Inputs untouched.
	if a.Bytes()[0] != 200 || b.Bytes()[0] != 200 {
		t.Error("overlay mutated an input buffer")
	}
}

func TestOverlayGeometryMismatch(t *testing.T) {
	a := Zeroed(PixelFormatGray8, 2, 2)
	b := Zeroed(PixelFormatGray8, 3, 2)

	if _, err := a.Overlay(b); !errors.Is(err, lunaris.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	c := Zeroed(PixelFormatRGBA8Unorm, 2, 2)
	if _, err := a.Overlay(c); !errors.Is(err, lunaris.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument on format mismatch, got %v", err)
	}
}

func TestSizeDownOddDimensions(t *testing.T) {
	// 3x3 grayscale: corners of the 2x2 output average different numbers of
	// source pixels.
	src, _ := FromBytes(PixelFormatGray8, 3, 3, []byte{
		10, 20, 30,
		40, 50, 60,
		70, 80, 90,
	})

	out := src.SizeDown()
	if out.Width() != 2 || out.Height() != 2 {
		t.Fatalf("expected 2x2, got %dx%d", out.Width(), out.Height())
	}

	want := []byte{
		(10 + 20 + 40 + 50) / 4, // full 2x2 block
		(30 + 60) / 2,           // right edge: one column
		(70 + 80) / 2,           // bottom edge: one row
		90,                      // corner: single pixel
	}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("expected %v, got %v", want, out.Bytes())
	}
}

func TestSizeDownRGBA(t *testing.T) {
	src, _ := FromRGBA8(2, 2, []byte{
		0, 0, 0, 255, 100, 0, 0, 255,
		0, 200, 0, 255, 0, 0, 40, 255,
	})

	out := src.SizeDown()
	if out.Width() != 1 || out.Height() != 1 {
		t.Fatalf("expected 1x1, got %dx%d", out.Width(), out.Height())
	}
	want := []byte{25, 50, 10, 255}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("expected %v, got %v", want, out.Bytes())
	}
}

func TestPixelFormatRoundTrip(t *testing.T) {
	for _, f := range []PixelFormat{PixelFormatRGBA8Unorm, PixelFormatRGBA8UnormSRGB, PixelFormatGray8} {
		got, ok := PixelFormatFromTexture(f.TextureFormat())
		if !ok || got != f {
			t.Errorf("%v: round-tripped to %v (ok=%v)", f, got, ok)
		}
	}
}
