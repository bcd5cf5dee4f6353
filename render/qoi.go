package render

import (
	"encoding/binary"
	"fmt"
)

// QOI wire codec over raw RGBA bytes.
//
// The stream layout is the published QOI format: a 14-byte header (magic,
// big-endian width/height, channel count, colorspace), a chunk stream of six
// ops, and an 8-byte end marker. Operating on the buffer's bytes directly
// keeps the codec lossless for translucent pixels; going through the
// image.Image color model would premultiply alpha and corrupt them.

const (
	qoiOpIndex = 0x00 // 00xxxxxx
	qoiOpDiff  = 0x40 // 01xxxxxx
	qoiOpLuma  = 0x80 // 10xxxxxx
	qoiOpRun   = 0xc0 // 11xxxxxx
	qoiOpRGB   = 0xfe
	qoiOpRGBA  = 0xff

	qoiMagic     = "qoif"
	qoiHeaderLen = 14

	// qoiColorspaceSRGB and qoiColorspaceLinear are informational header
	// values; they do not affect the chunk stream.
	qoiColorspaceSRGB   = 0
	qoiColorspaceLinear = 1
)

// qoiEndMarker terminates every stream: seven zero bytes and a one.
var qoiEndMarker = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

type qoiPixel struct {
	r, g, b, a uint8
}

func qoiHash(p qoiPixel) int {
	return (int(p.r)*3 + int(p.g)*5 + int(p.b)*7 + int(p.a)*11) % 64
}

// qoiHeader is the parsed stream header.
type qoiHeader struct {
	width      uint32
	height     uint32
	channels   uint8
	colorspace uint8
}

// qoiParseHeader validates the magic and reads the stream geometry.
func qoiParseHeader(data []byte) (qoiHeader, error) {
	if len(data) < qoiHeaderLen+len(qoiEndMarker) || string(data[:4]) != qoiMagic {
		return qoiHeader{}, fmt.Errorf("not a qoi stream")
	}
	return qoiHeader{
		width:      binary.BigEndian.Uint32(data[4:8]),
		height:     binary.BigEndian.Uint32(data[8:12]),
		channels:   data[12],
		colorspace: data[13],
	}, nil
}

// qoiEncodeRGBA encodes tightly packed RGBA pixels.
func qoiEncodeRGBA(width, height uint32, colorspace byte, pix []byte) []byte {
	out := make([]byte, 0, qoiHeaderLen+len(pix)/2+len(qoiEndMarker))

	var hdr [qoiHeaderLen]byte
	copy(hdr[:4], qoiMagic)
	binary.BigEndian.PutUint32(hdr[4:8], width)
	binary.BigEndian.PutUint32(hdr[8:12], height)
	hdr[12] = 4
	hdr[13] = colorspace
	out = append(out, hdr[:]...)

	var index [64]qoiPixel
	prev := qoiPixel{a: 255}
	run := 0

	for off := 0; off < len(pix); off += 4 {
		px := qoiPixel{r: pix[off], g: pix[off+1], b: pix[off+2], a: pix[off+3]}

		if px == prev {
			run++
			if run == 62 {
				out = append(out, qoiOpRun|byte(run-1))
				run = 0
			}
			continue
		}
		if run > 0 {
			out = append(out, qoiOpRun|byte(run-1))
			run = 0
		}

		h := qoiHash(px)
		switch {
		case index[h] == px:
			out = append(out, qoiOpIndex|byte(h))
		case px.a == prev.a:
			// Wrapping channel deltas, per the format.
			dr := int8(px.r - prev.r)
			dg := int8(px.g - prev.g)
			db := int8(px.b - prev.b)
			drg := dr - dg
			dbg := db - dg
			switch {
			case dr >= -2 && dr <= 1 && dg >= -2 && dg <= 1 && db >= -2 && db <= 1:
				out = append(out, qoiOpDiff|byte(dr+2)<<4|byte(dg+2)<<2|byte(db+2))
			case drg >= -8 && drg <= 7 && dg >= -32 && dg <= 31 && dbg >= -8 && dbg <= 7:
				out = append(out, qoiOpLuma|byte(dg+32), byte(drg+8)<<4|byte(dbg+8))
			default:
				out = append(out, qoiOpRGB, px.r, px.g, px.b)
			}
		default:
			out = append(out, qoiOpRGBA, px.r, px.g, px.b, px.a)
		}

		index[h] = px
		prev = px
	}
	if run > 0 {
		out = append(out, qoiOpRun|byte(run-1))
	}

	out = append(out, qoiEndMarker[:]...)
	return out
}

// qoiDecodeRGBA decodes a stream into tightly packed RGBA pixels.
// The pixel count comes from the already-validated header; a chunk stream
// too short to produce it fails as truncated.
func qoiDecodeRGBA(data []byte, hdr qoiHeader) ([]byte, error) {
	n := int(hdr.width) * int(hdr.height)
	pix := make([]byte, n*4)

	var index [64]qoiPixel
	px := qoiPixel{a: 255}
	run := 0
	p := qoiHeaderLen
	end := len(data) - len(qoiEndMarker)

	for i := 0; i < n; i++ {
		if run > 0 {
			run--
		} else {
			if p >= end {
				return nil, fmt.Errorf("qoi stream truncated at pixel %d of %d", i, n)
			}
			b1 := data[p]
			p++
			switch {
			case b1 == qoiOpRGB:
				if p+3 > end {
					return nil, fmt.Errorf("qoi stream truncated inside an RGB chunk")
				}
				px.r, px.g, px.b = data[p], data[p+1], data[p+2]
				p += 3
			case b1 == qoiOpRGBA:
				if p+4 > end {
					return nil, fmt.Errorf("qoi stream truncated inside an RGBA chunk")
				}
				px.r, px.g, px.b, px.a = data[p], data[p+1], data[p+2], data[p+3]
				p += 4
			case b1&0xc0 == qoiOpIndex:
				px = index[b1&0x3f]
			case b1&0xc0 == qoiOpDiff:
				px.r += (b1 >> 4 & 0x03) - 2
				px.g += (b1 >> 2 & 0x03) - 2
				px.b += (b1 & 0x03) - 2
			case b1&0xc0 == qoiOpLuma:
				if p >= end {
					return nil, fmt.Errorf("qoi stream truncated inside a luma chunk")
				}
				dg := (b1 & 0x3f) - 32
				b2 := data[p]
				p++
				px.r += dg - 8 + (b2 >> 4 & 0x0f)
				px.g += dg
				px.b += dg - 8 + (b2 & 0x0f)
			default: // qoiOpRun
				run = int(b1 & 0x3f)
			}
			index[qoiHash(px)] = px
		}

		off := i * 4
		pix[off], pix[off+1], pix[off+2], pix[off+3] = px.r, px.g, px.b, px.a
	}

	return pix, nil
}
