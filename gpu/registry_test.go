package gpu

import (
	"errors"
	"testing"

	lunaris "github.com/shuntia/lunaris-api"
)

func TestProcessDeviceInitOnce(t *testing.T) {
	resetProcessDevice()
	t.Cleanup(resetProcessDevice)

	if _, err := Handle(); !errors.Is(err, lunaris.ErrUninitialized) {
		t.Errorf("Handle before Init: expected ErrUninitialized, got %v", err)
	}

	dev := NewMemDevice()
	if err := Init(dev); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	got, err := Handle()
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got != Device(dev) {
		t.Error("Handle returned a different device")
	}

	if err := Init(NewMemDevice()); !errors.Is(err, lunaris.ErrAlreadyExists) {
		t.Errorf("second Init: expected ErrAlreadyExists, got %v", err)
	}
}

func TestInitNilDevice(t *testing.T) {
	resetProcessDevice()
	t.Cleanup(resetProcessDevice)

	if err := Init(nil); !errors.Is(err, lunaris.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
