// Package gpu defines the device abstraction used by the frame cache to hold
// its high tier: texture creation, upload, padded readback, and destruction.
//
// Two implementations ship with the module: MemDevice, an in-memory device
// for tests and GPU-less hosts, and the wgpu-backed adapter in gpu/wgpu.
// Backends register a process-wide default via Init; code that needs GPU
// access takes an explicit Device and falls back to Handle() only at the
// composition boundary.
package gpu

import "errors"

// Package errors for the device layer.
var (
	// ErrTextureNotFound is returned when a texture ID is unknown to the device.
	ErrTextureNotFound = errors.New("gpu: texture not found")

	// ErrUnknownFormat is returned for texture formats the device cannot hold.
	ErrUnknownFormat = errors.New("gpu: unknown texture format")

	// ErrUsageViolation is returned when an operation requires a usage flag
	// the texture was not created with.
	ErrUsageViolation = errors.New("gpu: texture usage violation")

	// ErrSizeMismatch is returned when written data does not match the
	// texture's byte size.
	ErrSizeMismatch = errors.New("gpu: data size mismatch")

	// ErrRowPitchTooSmall is returned when a readback row pitch is smaller
	// than the texture's logical row size.
	ErrRowPitchTooSmall = errors.New("gpu: row pitch smaller than logical row")
)

// TextureID is an opaque handle to a device texture.
// IDs are uint64 to accommodate various backend handle sizes.
type TextureID uint64

// InvalidID is the zero value, representing an invalid/null texture.
const InvalidID TextureID = 0

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA, normalized unsigned integer
	// in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatR8Unorm is 8-bit red channel only, normalized unsigned integer.
	TextureFormatR8Unorm
)

// BytesPerPixel returns the per-pixel byte count, or 0 for unknown formats.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSRGB:
		return 4
	case TextureFormatR8Unorm:
		return 1
	default:
		return 0
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst

	// TextureUsageTextureBinding indicates the texture can be bound as a
	// sampled texture.
	TextureUsageTextureBinding

	// TextureUsageRenderAttachment indicates the texture can be used as a
	// render target.
	TextureUsageRenderAttachment
)

// TextureDesc describes a 2D texture.
//
// Zero-area textures (width or height 0) are representable; readers
// short-circuit them without touching device memory.
type TextureDesc struct {
	// Label is an optional debug name.
	Label string

	// Width is the texture width in pixels.
	Width uint32

	// Height is the texture height in pixels.
	Height uint32

	// Format is the texture pixel format.
	Format TextureFormat

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// Device is the capability set the frame cache requires from a GPU backend.
//
// WriteTexture takes tightly packed rows; the backend handles any internal
// stride conversion. ReadTexture returns rows padded to paddedBytesPerRow,
// exactly as a staging buffer would hold them after a texture-to-buffer
// copy; callers strip the padding. Both are blocking calls (device
// submission plus a wait), so latency-sensitive callers must offload.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// RowAlignment returns the device-mandated row alignment for
	// texture-to-buffer copies, in bytes (256 on wgpu-class hardware).
	RowAlignment() uint32

	// CreateTexture creates a 2D texture.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// WriteTexture initializes the full texture from tightly packed rows.
	// The texture must carry TextureUsageCopyDst.
	WriteTexture(id TextureID, data []byte) error

	// ReadTexture copies the full texture into a host buffer whose rows are
	// padded to paddedBytesPerRow bytes. The texture must carry
	// TextureUsageCopySrc. paddedBytesPerRow must be a multiple of
	// RowAlignment() and at least width*bytesPerPixel.
	ReadTexture(id TextureID, paddedBytesPerRow uint32) ([]byte, error)

	// Describe returns the descriptor for a live texture.
	Describe(id TextureID) (TextureDesc, bool)

	// DestroyTexture releases the texture's device memory. Destroying an
	// unknown ID is a no-op.
	DestroyTexture(id TextureID)
}
