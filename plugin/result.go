package plugin

import (
	"fmt"

	"github.com/shuntia/lunaris-api/render"
)

// ResultKind tags the variant a Result carries.
type ResultKind uint8

// Result kinds.
const (
	// ResultImage carries a rendered frame.
	ResultImage ResultKind = iota + 1

	// ResultNumber carries a scalar, e.g. a computed parameter.
	ResultNumber

	// ResultWaveform carries audio samples.
	ResultWaveform

	// ResultOpaque carries a plugin-defined value the engine passes
	// through untouched.
	ResultOpaque
)

// String returns the kind name.
func (k ResultKind) String() string {
	switch k {
	case ResultImage:
		return "image"
	case ResultNumber:
		return "number"
	case ResultWaveform:
		return "waveform"
	case ResultOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("ResultKind(%d)", uint8(k))
	}
}

// Result is the tagged output of a plugin invocation. Exactly the field
// matching Kind is meaningful.
type Result struct {
	Kind     ResultKind
	Image    *render.PixelBuffer
	Number   float64
	Waveform []float64
	Opaque   any
}

// ImageResult wraps a frame.
func ImageResult(img *render.PixelBuffer) Result {
	return Result{Kind: ResultImage, Image: img}
}

// NumberResult wraps a scalar.
func NumberResult(n float64) Result {
	return Result{Kind: ResultNumber, Number: n}
}

// WaveformResult wraps audio samples.
func WaveformResult(samples []float64) Result {
	return Result{Kind: ResultWaveform, Waveform: samples}
}

// OpaqueResult wraps a plugin-defined value.
func OpaqueResult(v any) Result {
	return Result{Kind: ResultOpaque, Opaque: v}
}
