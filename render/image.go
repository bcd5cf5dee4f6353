// Package render implements the rendered-frame cache: pixel buffers with an
// explicit byte layout, the codec layer that compacts them, CPU↔GPU texture
// interop, and the three-tier cache that migrates frames between
// representations as access patterns change.
package render

import (
	"fmt"

	lunaris "github.com/shuntia/lunaris-api"
	"github.com/shuntia/lunaris-api/gpu"
)

// PixelFormat is a pixel byte layout the engine understands for CPU ⇄ GPU
// interchange.
type PixelFormat uint32

// Pixel formats.
const (
	// PixelFormatRGBA8Unorm is 8-bit RGBA, linear.
	PixelFormatRGBA8Unorm PixelFormat = iota + 1

	// PixelFormatRGBA8UnormSRGB is 8-bit RGBA in sRGB color space.
	PixelFormatRGBA8UnormSRGB

	// PixelFormatGray8 is single-channel 8-bit grayscale.
	PixelFormatGray8
)

// BytesPerPixel returns the per-pixel byte count, or 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA8Unorm, PixelFormatRGBA8UnormSRGB:
		return 4
	case PixelFormatGray8:
		return 1
	default:
		return 0
	}
}

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case PixelFormatRGBA8UnormSRGB:
		return "RGBA8UnormSRGB"
	case PixelFormatGray8:
		return "Gray8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint32(f))
	}
}

// TextureFormat returns the device format holding this layout.
func (f PixelFormat) TextureFormat() gpu.TextureFormat {
	switch f {
	case PixelFormatRGBA8Unorm:
		return gpu.TextureFormatRGBA8Unorm
	case PixelFormatRGBA8UnormSRGB:
		return gpu.TextureFormatRGBA8UnormSRGB
	case PixelFormatGray8:
		return gpu.TextureFormatR8Unorm
	default:
		return 0
	}
}

// PixelFormatFromTexture maps a device format back to the logical layout.
// Returns false for device formats with no logical counterpart.
func PixelFormatFromTexture(tf gpu.TextureFormat) (PixelFormat, bool) {
	switch tf {
	case gpu.TextureFormatRGBA8Unorm:
		return PixelFormatRGBA8Unorm, true
	case gpu.TextureFormatRGBA8UnormSRGB:
		return PixelFormatRGBA8UnormSRGB, true
	case gpu.TextureFormatR8Unorm:
		return PixelFormatGray8, true
	default:
		return 0, false
	}
}

// PixelBuffer is an immutable CPU-side image buffer with explicit format
// metadata. The byte slice is shared between holders; callers must not
// mutate it.
type PixelBuffer struct {
	width  uint32
	height uint32
	format PixelFormat
	data   []byte
}

// FromBytes constructs a buffer from raw bytes.
// Fails with lunaris.ErrInvalidArgument when the byte length does not match
// width*height*bytesPerPixel(format).
func FromBytes(format PixelFormat, width, height uint32, data []byte) (*PixelBuffer, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("pixel format %v: %w", format, lunaris.ErrInvalidArgument)
	}
	expected := int(width) * int(height) * bpp
	if len(data) != expected {
		return nil, fmt.Errorf("image bytes: expected %d bytes for %dx%d %v, got %d: %w",
			expected, width, height, format, len(data), lunaris.ErrInvalidArgument)
	}
	return &PixelBuffer{width: width, height: height, format: format, data: data}, nil
}

// FromRGBA8 is a convenience constructor for linear RGBA8 images.
func FromRGBA8(width, height uint32, data []byte) (*PixelBuffer, error) {
	return FromBytes(PixelFormatRGBA8Unorm, width, height, data)
}

// FromRGBA8SRGB is a convenience constructor for sRGB RGBA8 images.
func FromRGBA8SRGB(width, height uint32, data []byte) (*PixelBuffer, error) {
	return FromBytes(PixelFormatRGBA8UnormSRGB, width, height, data)
}

// Zeroed returns a zero-filled buffer of the exact expected length.
// Unknown formats yield an empty Gray8-sized buffer of zero geometry; callers
// validate formats before reaching here.
func Zeroed(format PixelFormat, width, height uint32) *PixelBuffer {
	n := int(width) * int(height) * format.BytesPerPixel()
	return &PixelBuffer{width: width, height: height, format: format, data: make([]byte, n)}
}

// Width returns the width in pixels.
func (b *PixelBuffer) Width() uint32 { return b.width }

// Height returns the height in pixels.
func (b *PixelBuffer) Height() uint32 { return b.height }

// Format returns the pixel layout.
func (b *PixelBuffer) Format() PixelFormat { return b.format }

// BytesPerPixel returns the per-pixel byte count of the buffer's format.
func (b *PixelBuffer) BytesPerPixel() int { return b.format.BytesPerPixel() }

// Len returns the byte length of the buffer.
func (b *PixelBuffer) Len() int { return len(b.data) }

// Bytes returns the underlying byte slice. The slice is shared; callers must
// not modify it.
func (b *PixelBuffer) Bytes() []byte { return b.data }

// ensureGeometry validates that two buffers can be combined.
func (b *PixelBuffer) ensureGeometry(other *PixelBuffer) error {
	if b.width != other.width || b.height != other.height {
		return fmt.Errorf("%dx%d vs %dx%d: %w",
			b.width, b.height, other.width, other.height, lunaris.ErrDimensionMismatch)
	}
	if b.format != other.format {
		return fmt.Errorf("pixel format %v vs %v: %w", b.format, other.format, lunaris.ErrInvalidArgument)
	}
	return nil
}

// Overlay returns the per-byte saturating sum of two buffers with identical
// geometry and format. This is an additive compositing primitive, not alpha
// blending.
func (b *PixelBuffer) Overlay(other *PixelBuffer) (*PixelBuffer, error) {
	if err := b.ensureGeometry(other); err != nil {
		return nil, err
	}
	out := make([]byte, len(b.data))
	for i := range b.data {
		s := uint16(b.data[i]) + uint16(other.data[i])
		if s > 0xff {
			s = 0xff
		}
		out[i] = byte(s)
	}
	return &PixelBuffer{width: b.width, height: b.height, format: b.format, data: out}, nil
}

// SizeDown produces a half-size buffer (ceil on odd dimensions) using an
// unweighted box filter. Each output channel is the average of the up-to-4
// contributing source pixels; edge pixels average only the pixels that exist.
func (b *PixelBuffer) SizeDown() *PixelBuffer {
	bpp := uint32(b.BytesPerPixel())
	newWidth := (b.width + 1) / 2
	newHeight := (b.height + 1) / 2
	out := make([]byte, int(newWidth)*int(newHeight)*int(bpp))

	for y := uint32(0); y < newHeight; y++ {
		for x := uint32(0); x < newWidth; x++ {
			for c := uint32(0); c < bpp; c++ {
				var sum, count uint32
				for dy := uint32(0); dy < 2; dy++ {
					sy := y*2 + dy
					if sy >= b.height {
						continue
					}
					for dx := uint32(0); dx < 2; dx++ {
						sx := x*2 + dx
						if sx >= b.width {
							continue
						}
						sum += uint32(b.data[(sy*b.width+sx)*bpp+c])
						count++
					}
				}
				if count > 0 {
					out[(y*newWidth+x)*bpp+c] = byte(sum / count)
				}
			}
		}
	}

	return &PixelBuffer{width: newWidth, height: newHeight, format: b.format, data: out}
}
