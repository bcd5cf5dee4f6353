package render

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	lunaris "github.com/shuntia/lunaris-api"
)

// strategyKind enumerates the wire codecs.
type strategyKind uint8

const (
	strategyRaw strategyKind = iota + 1
	strategyQOI
	strategyS2
	strategyZstd
)

// Strategy selects the codec used to compact pixel buffers for the low cache
// tier. The zero value is invalid; TieredCache substitutes StrategyQOI for it.
type Strategy struct {
	kind strategyKind

	// zstdLevel is meaningful only for the zstd kind.
	zstdLevel int
}

// Codec strategies.
var (
	// StrategyRaw copies bytes without compression.
	StrategyRaw = Strategy{kind: strategyRaw}

	// StrategyQOI encodes with the QOI image format. Only 4-channel layouts
	// are supported.
	StrategyQOI = Strategy{kind: strategyQOI}

	// StrategyS2 encodes with S2 block compression.
	StrategyS2 = Strategy{kind: strategyS2}
)

// ZstdLevel returns a zstd strategy at the given compression level.
// Levels are clamped to [1, 22].
func ZstdLevel(level int) Strategy {
	if level < 1 {
		level = 1
	}
	if level > 22 {
		level = 22
	}
	return Strategy{kind: strategyZstd, zstdLevel: level}
}

// String returns the codec name.
func (s Strategy) String() string {
	switch s.kind {
	case strategyRaw:
		return "raw"
	case strategyQOI:
		return "qoi"
	case strategyS2:
		return "s2"
	case strategyZstd:
		return fmt.Sprintf("zstd(%d)", s.zstdLevel)
	default:
		return "invalid"
	}
}

// CompressedPixelBuffer is a pixel buffer in compacted form. It remembers
// the geometry, pixel layout, and codec needed to restore the original.
type CompressedPixelBuffer struct {
	width   uint32
	height  uint32
	format  PixelFormat
	codec   Strategy
	payload []byte
}

// Width returns the width in pixels of the decoded image.
func (c *CompressedPixelBuffer) Width() uint32 { return c.width }

// Height returns the height in pixels of the decoded image.
func (c *CompressedPixelBuffer) Height() uint32 { return c.height }

// Format returns the pixel layout of the decoded image.
func (c *CompressedPixelBuffer) Format() PixelFormat { return c.format }

// Codec returns the strategy that produced the payload.
func (c *CompressedPixelBuffer) Codec() Strategy { return c.codec }

// Len returns the compressed payload length in bytes.
func (c *CompressedPixelBuffer) Len() int { return len(c.payload) }

// Compress compacts the buffer with the given strategy.
func (b *PixelBuffer) Compress(s Strategy) (*CompressedPixelBuffer, error) {
	var payload []byte
	var err error

	switch s.kind {
	case strategyRaw:
		payload = make([]byte, len(b.data))
		copy(payload, b.data)
	case strategyQOI:
		payload, err = qoiEncode(b)
	case strategyS2:
		payload = s2.Encode(nil, b.data)
	case strategyZstd:
		payload, err = zstdEncode(b.data, s.zstdLevel)
	default:
		return nil, fmt.Errorf("codec strategy %v: %w", s, lunaris.ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}

	return &CompressedPixelBuffer{
		width:   b.width,
		height:  b.height,
		format:  b.format,
		codec:   s,
		payload: payload,
	}, nil
}

// Decompress restores the original pixel buffer.
//
// Beyond codec-level stream validation, the decoded output is checked against
// the recorded geometry; a length or header mismatch fails with
// lunaris.ErrInvalidArgument since it means the metadata and payload
// disagree.
func (c *CompressedPixelBuffer) Decompress() (*PixelBuffer, error) {
	var data []byte
	var err error

	switch c.codec.kind {
	case strategyRaw:
		data = make([]byte, len(c.payload))
		copy(data, c.payload)
	case strategyQOI:
		data, err = qoiDecode(c)
	case strategyS2:
		data, err = s2.Decode(nil, c.payload)
		if err != nil {
			err = fmt.Errorf("s2 decode: %v: %w", err, lunaris.ErrFailedDecompress)
		}
	case strategyZstd:
		data, err = zstdDecode(c.payload)
	default:
		return nil, fmt.Errorf("codec strategy %v: %w", c.codec, lunaris.ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}

	expected := int(c.width) * int(c.height) * c.format.BytesPerPixel()
	if len(data) != expected {
		return nil, fmt.Errorf("decoded %d bytes, metadata says %d: %w",
			len(data), expected, lunaris.ErrInvalidArgument)
	}
	return FromBytes(c.format, c.width, c.height, data)
}

// qoiEncode QOI-encodes the pixel data straight from the buffer's bytes.
func qoiEncode(b *PixelBuffer) ([]byte, error) {
	if b.BytesPerPixel() != 4 {
		return nil, fmt.Errorf("qoi encode: %v is not a 4-channel layout: %w",
			b.format, lunaris.ErrFailedCompress)
	}

	colorspace := byte(qoiColorspaceLinear)
	if b.format == PixelFormatRGBA8UnormSRGB {
		colorspace = qoiColorspaceSRGB
	}
	return qoiEncodeRGBA(b.width, b.height, colorspace, b.data), nil
}

// qoiDecode validates the stream header against the recorded metadata before
// decoding the pixels.
func qoiDecode(c *CompressedPixelBuffer) ([]byte, error) {
	if c.format.BytesPerPixel() != 4 {
		return nil, fmt.Errorf("qoi decode: %v is not a 4-channel layout: %w",
			c.format, lunaris.ErrInvalidArgument)
	}

	hdr, err := qoiParseHeader(c.payload)
	if err != nil {
		return nil, fmt.Errorf("qoi header: %v: %w", err, lunaris.ErrFailedDecompress)
	}
	if hdr.width != c.width || hdr.height != c.height {
		return nil, fmt.Errorf("qoi header %dx%d, metadata says %dx%d: %w",
			hdr.width, hdr.height, c.width, c.height, lunaris.ErrInvalidArgument)
	}
	if hdr.channels != 4 {
		return nil, fmt.Errorf("qoi header carries %d channels, metadata says 4: %w",
			hdr.channels, lunaris.ErrInvalidArgument)
	}

	data, err := qoiDecodeRGBA(c.payload, hdr)
	if err != nil {
		return nil, fmt.Errorf("qoi decode: %v: %w", err, lunaris.ErrFailedDecompress)
	}
	return data, nil
}

func zstdEncode(data []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %v: %w", err, lunaris.ErrFailedCompress)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecode(payload []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %v: %w", err, lunaris.ErrFailedDecompress)
	}
	defer dec.Close()

	data, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %v: %w", err, lunaris.ErrFailedDecompress)
	}
	return data, nil
}
