package render

import (
	"fmt"

	lunaris "github.com/shuntia/lunaris-api"
	"github.com/shuntia/lunaris-api/gpu"
)

// UploadTexture creates a device texture matching the buffer's geometry and
// format and initializes its contents. CopyDst is always added to the
// requested usage so the initial write is legal.
func UploadTexture(dev gpu.Device, buf *PixelBuffer, usage gpu.TextureUsage) (gpu.TextureID, error) {
	tf := buf.Format().TextureFormat()
	if tf == 0 {
		return gpu.InvalidID, fmt.Errorf("upload: no device format for %v: %w",
			buf.Format(), lunaris.ErrInvalidArgument)
	}

	id, err := dev.CreateTexture(gpu.TextureDesc{
		Width:  buf.Width(),
		Height: buf.Height(),
		Format: tf,
		Usage:  usage | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		return gpu.InvalidID, fmt.Errorf("upload: create texture: %w", err)
	}

	if err := dev.WriteTexture(id, buf.Bytes()); err != nil {
		dev.DestroyTexture(id)
		return gpu.InvalidID, fmt.Errorf("upload: write texture: %w", err)
	}
	return id, nil
}

// ReadbackTexture copies a device texture into a tightly packed PixelBuffer,
// stripping the device's row-pitch padding.
//
// The texture must carry CopySrc usage; readback of a texture created
// without it is a programmer error and panics. Zero-area textures
// short-circuit to an empty buffer without touching the device.
func ReadbackTexture(dev gpu.Device, id gpu.TextureID) (*PixelBuffer, error) {
	desc, ok := dev.Describe(id)
	if !ok {
		panic(fmt.Sprintf("render: readback of unknown texture %d", id))
	}
	if desc.Usage&gpu.TextureUsageCopySrc == 0 {
		panic(fmt.Sprintf("render: texture %d created without CopySrc cannot be read back", id))
	}

	format, ok := PixelFormatFromTexture(desc.Format)
	if !ok {
		return nil, fmt.Errorf("readback: device format %d has no pixel layout: %w",
			desc.Format, lunaris.ErrInvalidArgument)
	}

	if desc.Width == 0 || desc.Height == 0 {
		return Zeroed(format, desc.Width, desc.Height), nil
	}

	bytesPerRow := desc.Width * uint32(format.BytesPerPixel())
	padded := alignRow(bytesPerRow, dev.RowAlignment())

	raw, err := dev.ReadTexture(id, padded)
	if err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	if len(raw) < int(padded)*int(desc.Height) {
		return nil, fmt.Errorf("readback: device returned %d bytes, need %d: %w",
			len(raw), int(padded)*int(desc.Height), lunaris.ErrInvalidArgument)
	}

	if padded == bytesPerRow {
		return FromBytes(format, desc.Width, desc.Height, raw[:int(bytesPerRow)*int(desc.Height)])
	}

	data := make([]byte, int(bytesPerRow)*int(desc.Height))
	for y := uint32(0); y < desc.Height; y++ {
		copy(data[y*bytesPerRow:(y+1)*bytesPerRow], raw[y*padded:])
	}
	return FromBytes(format, desc.Width, desc.Height, data)
}

// alignRow rounds bytesPerRow up to the next multiple of align.
func alignRow(bytesPerRow, align uint32) uint32 {
	if align == 0 {
		return bytesPerRow
	}
	return (bytesPerRow + align - 1) / align * align
}
