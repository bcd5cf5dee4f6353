package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// memRowAlignment matches the wgpu COPY_BYTES_PER_ROW_ALIGNMENT constant so
// tests exercise the same padding arithmetic as real hardware.
const memRowAlignment = 256

// MemDevice is an in-memory Device.
//
// It stores texture contents in host memory, validates usage flags the way a
// real device would, and models row-pitch padding on readback (pad bytes are
// zero-filled). It serves tests and hosts running without a GPU.
//
// MemDevice is safe for concurrent use.
type MemDevice struct {
	mu       sync.RWMutex
	textures map[TextureID]*memTexture

	// ID generation
	nextID atomic.Uint64
}

var _ Device = (*MemDevice)(nil)

// memTexture holds a texture's descriptor and tightly packed contents.
type memTexture struct {
	desc TextureDesc
	data []byte
}

// NewMemDevice creates an empty in-memory device.
func NewMemDevice() *MemDevice {
	d := &MemDevice{
		textures: make(map[TextureID]*memTexture),
	}
	// Start ID generation at 1 (0 is invalid).
	d.nextID.Store(1)
	return d
}

// RowAlignment returns the modeled row alignment for texture readback.
func (d *MemDevice) RowAlignment() uint32 {
	return memRowAlignment
}

// CreateTexture creates a texture. Zero-area textures are allowed; their
// contents are empty.
func (d *MemDevice) CreateTexture(desc TextureDesc) (TextureID, error) {
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 {
		return InvalidID, fmt.Errorf("%w: %d", ErrUnknownFormat, desc.Format)
	}

	id := TextureID(d.nextID.Add(1) - 1)
	tex := &memTexture{
		desc: desc,
		data: make([]byte, int(desc.Width)*int(desc.Height)*bpp),
	}

	d.mu.Lock()
	d.textures[id] = tex
	d.mu.Unlock()

	return id, nil
}

// WriteTexture initializes the full texture from tightly packed rows.
func (d *MemDevice) WriteTexture(id TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTextureNotFound, id)
	}
	if tex.desc.Usage&TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: write requires CopyDst", ErrUsageViolation)
	}
	if len(data) != len(tex.data) {
		return fmt.Errorf("%w: got %d bytes, texture holds %d", ErrSizeMismatch, len(data), len(tex.data))
	}

	copy(tex.data, data)
	return nil
}

// ReadTexture returns the texture contents with each row padded to
// paddedBytesPerRow, mirroring a staging-buffer copy on real hardware.
func (d *MemDevice) ReadTexture(id TextureID, paddedBytesPerRow uint32) ([]byte, error) {
	d.mu.RLock()
	tex, ok := d.textures[id]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTextureNotFound, id)
	}
	if tex.desc.Usage&TextureUsageCopySrc == 0 {
		return nil, fmt.Errorf("%w: readback requires CopySrc", ErrUsageViolation)
	}

	bytesPerRow := uint32(tex.desc.Width) * uint32(tex.desc.Format.BytesPerPixel())
	if paddedBytesPerRow < bytesPerRow {
		return nil, fmt.Errorf("%w: pitch %d, row %d", ErrRowPitchTooSmall, paddedBytesPerRow, bytesPerRow)
	}

	out := make([]byte, int(paddedBytesPerRow)*int(tex.desc.Height))
	for y := uint32(0); y < tex.desc.Height; y++ {
		src := tex.data[y*bytesPerRow : (y+1)*bytesPerRow]
		dst := out[y*paddedBytesPerRow:]
		copy(dst, src)
	}
	return out, nil
}

// Describe returns the descriptor for a live texture.
func (d *MemDevice) Describe(id TextureID) (TextureDesc, bool) {
	d.mu.RLock()
	tex, ok := d.textures[id]
	d.mu.RUnlock()

	if !ok {
		return TextureDesc{}, false
	}
	return tex.desc, true
}

// DestroyTexture releases the texture. Destroying an unknown ID is a no-op.
func (d *MemDevice) DestroyTexture(id TextureID) {
	d.mu.Lock()
	delete(d.textures, id)
	d.mu.Unlock()
}

// TextureCount returns the number of live textures. Useful for asserting
// deterministic release in tests.
func (d *MemDevice) TextureCount() int {
	d.mu.RLock()
	n := len(d.textures)
	d.mu.RUnlock()
	return n
}
