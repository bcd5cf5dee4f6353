// Package wgpu adapts a gogpu/wgpu HAL device and queue to the gpu.Device
// interface, backing the cache's high tier with real GPU textures.
package wgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/shuntia/lunaris-api/gpu"
)

// copyBytesPerRowAlignment is wgpu's COPY_BYTES_PER_ROW_ALIGNMENT: rows in a
// texture-to-buffer copy must start at 256-byte boundaries.
const copyBytesPerRowAlignment = 256

// fenceTimeout bounds the wait for a readback submission.
const fenceTimeout = 5 * time.Second

// DeviceAdapter implements gpu.Device on top of gogpu/wgpu/hal.
//
// Thread Safety: DeviceAdapter is safe for concurrent use from multiple
// goroutines. All resource operations are protected by a mutex.
type DeviceAdapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpu IDs to hal textures and their descriptors.
	textures map[gpu.TextureID]halTexture
}

var _ gpu.Device = (*DeviceAdapter)(nil)

// halTexture pairs a hal handle with the descriptor it was created from.
type halTexture struct {
	tex  hal.Texture
	desc gpu.TextureDesc
}

// NewDeviceAdapter wraps the given HAL device and queue.
func NewDeviceAdapter(device hal.Device, queue hal.Queue) *DeviceAdapter {
	a := &DeviceAdapter{
		device:   device,
		queue:    queue,
		textures: make(map[gpu.TextureID]halTexture),
	}
	// Start ID generation at 1 (0 is invalid)
	a.nextID.Store(1)
	return a
}

// newID generates a unique resource ID.
func (a *DeviceAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// RowAlignment returns wgpu's required row alignment for readback copies.
func (a *DeviceAdapter) RowAlignment() uint32 {
	return copyBytesPerRowAlignment
}

// CreateTexture creates a 2D GPU texture.
func (a *DeviceAdapter) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	halFormat, ok := convertTextureFormat(desc.Format)
	if !ok {
		return gpu.InvalidID, fmt.Errorf("%w: %d", gpu.ErrUnknownFormat, desc.Format)
	}

	texture, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        halFormat,
		Usage:         convertTextureUsage(desc.Usage),
	})
	if err != nil {
		return gpu.InvalidID, fmt.Errorf("wgpu: create texture: %w", err)
	}

	id := gpu.TextureID(a.newID())

	a.mu.Lock()
	a.textures[id] = halTexture{tex: texture, desc: desc}
	a.mu.Unlock()

	return id, nil
}

// WriteTexture uploads tightly packed rows into the full texture via the
// queue.
func (a *DeviceAdapter) WriteTexture(id gpu.TextureID, data []byte) error {
	a.mu.RLock()
	t, ok := a.textures[id]
	a.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %d", gpu.ErrTextureNotFound, id)
	}
	if t.desc.Usage&gpu.TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: write requires CopyDst", gpu.ErrUsageViolation)
	}

	bytesPerRow := t.desc.Width * uint32(t.desc.Format.BytesPerPixel())
	expected := int(bytesPerRow) * int(t.desc.Height)
	if len(data) != expected {
		return fmt.Errorf("%w: got %d bytes, texture holds %d", gpu.ErrSizeMismatch, len(data), expected)
	}
	if expected == 0 {
		return nil
	}

	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: t.desc.Height,
		},
		&hal.Extent3D{Width: t.desc.Width, Height: t.desc.Height, DepthOrArrayLayers: 1},
	)
	return nil
}

// ReadTexture copies the texture into a staging buffer with the given row
// pitch, waits for the GPU, and returns the padded bytes.
func (a *DeviceAdapter) ReadTexture(id gpu.TextureID, paddedBytesPerRow uint32) ([]byte, error) {
	a.mu.RLock()
	t, ok := a.textures[id]
	a.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", gpu.ErrTextureNotFound, id)
	}
	if t.desc.Usage&gpu.TextureUsageCopySrc == 0 {
		return nil, fmt.Errorf("%w: readback requires CopySrc", gpu.ErrUsageViolation)
	}

	bytesPerRow := t.desc.Width * uint32(t.desc.Format.BytesPerPixel())
	if paddedBytesPerRow < bytesPerRow {
		return nil, fmt.Errorf("%w: pitch %d, row %d", gpu.ErrRowPitchTooSmall, paddedBytesPerRow, bytesPerRow)
	}
	if paddedBytesPerRow%copyBytesPerRowAlignment != 0 {
		return nil, fmt.Errorf("%w: pitch %d is not %d-byte aligned",
			gpu.ErrRowPitchTooSmall, paddedBytesPerRow, copyBytesPerRowAlignment)
	}

	stagingSize := uint64(paddedBytesPerRow) * uint64(t.desc.Height)
	if stagingSize == 0 {
		return nil, nil
	}

	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "framecache_readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "framecache_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("framecache_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	// The texture was last written through CopyDst; CopyTextureToBuffer
	// requires the CopySrc layout on Vulkan and DX12. No-op elsewhere.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	encoder.CopyTextureToBuffer(t.tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: paddedBytesPerRow, RowsPerImage: t.desc.Height},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: t.desc.Width, Height: t.desc.Height, DepthOrArrayLayers: 1},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	// Submit and wait.
	fence, err := a.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("wgpu: submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("wgpu: wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, stagingSize)
	if err := a.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	return readback, nil
}

// Describe returns the descriptor for a live texture.
func (a *DeviceAdapter) Describe(id gpu.TextureID) (gpu.TextureDesc, bool) {
	a.mu.RLock()
	t, ok := a.textures[id]
	a.mu.RUnlock()

	if !ok {
		return gpu.TextureDesc{}, false
	}
	return t.desc, true
}

// DestroyTexture releases the texture. Destroying an unknown ID is a no-op.
func (a *DeviceAdapter) DestroyTexture(id gpu.TextureID) {
	a.mu.Lock()
	t, ok := a.textures[id]
	if ok {
		delete(a.textures, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyTexture(t.tex)
	}
}

// TextureCount returns the number of live textures.
func (a *DeviceAdapter) TextureCount() int {
	a.mu.RLock()
	n := len(a.textures)
	a.mu.RUnlock()
	return n
}

// === Type Conversion Helpers ===

// convertTextureFormat converts gpu.TextureFormat to gputypes.TextureFormat.
func convertTextureFormat(format gpu.TextureFormat) (gputypes.TextureFormat, bool) {
	switch format {
	case gpu.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, true
	case gpu.TextureFormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb, true
	case gpu.TextureFormatR8Unorm:
		return gputypes.TextureFormatR8Unorm, true
	default:
		return 0, false
	}
}

// convertTextureUsage converts gpu.TextureUsage to gputypes.TextureUsage.
func convertTextureUsage(usage gpu.TextureUsage) gputypes.TextureUsage {
	var result gputypes.TextureUsage

	if usage&gpu.TextureUsageCopySrc != 0 {
		result |= gputypes.TextureUsageCopySrc
	}
	if usage&gpu.TextureUsageCopyDst != 0 {
		result |= gputypes.TextureUsageCopyDst
	}
	if usage&gpu.TextureUsageTextureBinding != 0 {
		result |= gputypes.TextureUsageTextureBinding
	}
	if usage&gpu.TextureUsageRenderAttachment != 0 {
		result |= gputypes.TextureUsageRenderAttachment
	}

	return result
}
