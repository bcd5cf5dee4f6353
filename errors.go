package lunaris

import "errors"

// Error taxonomy shared by all lunaris-api packages.
//
// Errors are matched with errors.Is; callers receive them wrapped with
// operation context via fmt.Errorf("...: %w", ...).
var (
	// ErrNotFound is returned when an entity is absent from every cache tier,
	// or a registry lookup misses.
	ErrNotFound = errors.New("lunaris: not found")

	// ErrInvalidArgument is returned for geometry/format/byte-length
	// mismatches, decoded payload length mismatches, and codec header
	// disagreements.
	ErrInvalidArgument = errors.New("lunaris: invalid argument")

	// ErrDimensionMismatch is returned when two buffers with different
	// geometry are combined.
	ErrDimensionMismatch = errors.New("lunaris: dimension mismatch")

	// ErrFailedCompress is returned when a codec fails to encode a buffer.
	// It wraps the underlying codec diagnostic.
	ErrFailedCompress = errors.New("lunaris: compression failed")

	// ErrFailedDecompress is returned when a codec fails to decode a payload.
	// It wraps the underlying codec diagnostic.
	ErrFailedDecompress = errors.New("lunaris: decompression failed")

	// ErrAlreadyExists is returned when a process-wide resource is
	// initialized twice, or a registry name is taken.
	ErrAlreadyExists = errors.New("lunaris: already exists")

	// ErrUninitialized is returned when a process-wide resource is read
	// before the host initialized it.
	ErrUninitialized = errors.New("lunaris: not initialized")
)
