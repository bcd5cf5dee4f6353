package gpu

import (
	"fmt"
	"sync/atomic"

	lunaris "github.com/shuntia/lunaris-api"
)

// processDevice holds the process-wide default device. Set exactly once at
// startup and read thereafter without synchronization (immutable after init).
var processDevice atomic.Pointer[deviceBox]

// deviceBox exists so the atomic pointer can hold an interface value.
type deviceBox struct {
	dev Device
}

// Init installs the process-wide default device. The host calls this once
// before the first cache operation that needs GPU access.
//
// A second call fails with lunaris.ErrAlreadyExists; the installed device
// is never replaced.
func Init(dev Device) error {
	if dev == nil {
		return fmt.Errorf("gpu: nil device: %w", lunaris.ErrInvalidArgument)
	}
	if !processDevice.CompareAndSwap(nil, &deviceBox{dev: dev}) {
		return fmt.Errorf("gpu: process device: %w", lunaris.ErrAlreadyExists)
	}
	return nil
}

// Handle returns the process-wide default device.
// Fails with lunaris.ErrUninitialized before Init.
func Handle() (Device, error) {
	box := processDevice.Load()
	if box == nil {
		return nil, fmt.Errorf("gpu: process device: %w", lunaris.ErrUninitialized)
	}
	return box.dev, nil
}

// resetProcessDevice clears the holder. Test hook only.
func resetProcessDevice() {
	processDevice.Store(nil)
}
