package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"

	lunaris "github.com/shuntia/lunaris-api"
	"github.com/shuntia/lunaris-api/render"
)

// solidRenderer renders a fixed-size frame and counts concurrent entries to
// verify the shared wrapper serializes calls.
type solidRenderer struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (r *solidRenderer) Render(_ context.Context, _ render.EntityID) (*render.PixelBuffer, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	r.mu.Unlock()

	buf := render.Zeroed(render.PixelFormatRGBA8Unorm, 2, 2)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return buf, nil
}

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	s, err := reg.Register("solid", CapabilityRender, &solidRenderer{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if s.Name() != "solid" {
		t.Errorf("unexpected name %q", s.Name())
	}
	if !s.Capabilities().Has(CapabilityRender) {
		t.Error("render capability not recorded")
	}

	got, err := reg.Lookup("solid")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != s {
		t.Error("Lookup returned a different wrapper")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Register("solid", CapabilityRender, &solidRenderer{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := reg.Register("solid", CapabilityRender, &solidRenderer{}); !errors.Is(err, lunaris.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 plugin, got %d", reg.Len())
	}
}

func TestLookupUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Lookup("missing"); !errors.Is(err, lunaris.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register("", CapabilityRender, &solidRenderer{}); !errors.Is(err, lunaris.ErrInvalidArgument) {
		t.Errorf("empty name: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := reg.Register("solid", CapabilityRender, nil); !errors.Is(err, lunaris.ErrInvalidArgument) {
		t.Errorf("nil instance: expected ErrInvalidArgument, got %v", err)
	}
}

func TestSharedRender(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.Register("solid", CapabilityRender, &solidRenderer{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	buf, err := s.Render(context.Background(), 7)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.Width() != 2 || buf.Height() != 2 {
		t.Errorf("unexpected frame %dx%d", buf.Width(), buf.Height())
	}
}

func TestSharedRenderWithoutCapability(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.Register("meter", CapabilityGUI, &solidRenderer{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := s.Render(context.Background(), 1); !errors.Is(err, lunaris.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSharedSerializesCalls(t *testing.T) {
	reg := NewRegistry()
	impl := &solidRenderer{}
	s, err := reg.Register("solid", CapabilityRender, impl)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Render(context.Background(), 1); err != nil {
				t.Errorf("Render failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if impl.maxSeen > 1 {
		t.Errorf("wrapper admitted %d concurrent calls", impl.maxSeen)
	}
}

func TestWithCapability(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register("a", CapabilityRender, &solidRenderer{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Register("b", CapabilityRender|CapabilityGUI, &solidRenderer{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Register("c", CapabilityAudio, &solidRenderer{}); err != nil {
		t.Fatal(err)
	}

	if got := len(reg.WithCapability(CapabilityRender)); got != 2 {
		t.Errorf("expected 2 render plugins, got %d", got)
	}
	if got := len(reg.WithCapability(CapabilityRender | CapabilityGUI)); got != 1 {
		t.Errorf("expected 1 render+gui plugin, got %d", got)
	}
	if got := len(reg.WithCapability(CapabilityAudio)); got != 1 {
		t.Errorf("expected 1 audio plugin, got %d", got)
	}
}

func TestCapabilityString(t *testing.T) {
	if got := (CapabilityRender | CapabilityAudio).String(); got != "render|audio" {
		t.Errorf("unexpected capability string %q", got)
	}
	if got := Capability(0).String(); got != "none" {
		t.Errorf("unexpected capability string %q", got)
	}
}

func TestResultConstructors(t *testing.T) {
	img := render.Zeroed(render.PixelFormatGray8, 1, 1)

	tests := []struct {
		name string
		r    Result
		kind ResultKind
	}{
		{"image", ImageResult(img), ResultImage},
		{"number", NumberResult(4.5), ResultNumber},
		{"waveform", WaveformResult([]float64{0, 1}), ResultWaveform},
		{"opaque", OpaqueResult("state"), ResultOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.r.Kind != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, tt.r.Kind)
			}
		})
	}
}
