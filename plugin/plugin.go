// Package plugin hosts the capability registry through which the engine
// discovers frame producers. A plugin registers one physical instance under a
// name together with the set of capabilities it implements; lookups hand out
// a shared, lock-guarded wrapper so several subsystems can drive the same
// instance.
package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lunaris "github.com/shuntia/lunaris-api"
	"github.com/shuntia/lunaris-api/internal/shardmap"
	"github.com/shuntia/lunaris-api/render"
)

// Capability is a bit set naming the interfaces a plugin implements.
type Capability uint32

// Capabilities.
const (
	// CapabilityRender marks a plugin that produces frames (implements
	// Renderer).
	CapabilityRender Capability = 1 << iota

	// CapabilityGUI marks a plugin that exposes an editor surface.
	CapabilityGUI

	// CapabilityAudio marks a plugin that produces audio.
	CapabilityAudio
)

// Has reports whether all bits of other are set.
func (c Capability) Has(other Capability) bool { return c&other == other }

// String lists the set capability names.
func (c Capability) String() string {
	var parts []string
	if c.Has(CapabilityRender) {
		parts = append(parts, "render")
	}
	if c.Has(CapabilityGUI) {
		parts = append(parts, "gui")
	}
	if c.Has(CapabilityAudio) {
		parts = append(parts, "audio")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Renderer produces the frame for an entity. Implementations may block on
// I/O or heavy computation; the context bounds the render.
type Renderer interface {
	Render(ctx context.Context, id render.EntityID) (*render.PixelBuffer, error)
}

// Shared is a lock-guarded wrapper around one plugin instance. All capability
// calls go through the wrapper's mutex, so an instance satisfying several
// capabilities never sees concurrent calls.
type Shared struct {
	name string
	caps Capability

	mu   sync.Mutex
	impl any
}

// Name returns the registered plugin name.
func (s *Shared) Name() string { return s.name }

// Capabilities returns the declared capability set.
func (s *Shared) Capabilities() Capability { return s.caps }

// Render invokes the instance's Renderer capability under the wrapper lock.
// Fails with lunaris.ErrInvalidArgument when the plugin did not declare
// CapabilityRender.
func (s *Shared) Render(ctx context.Context, id render.EntityID) (*render.PixelBuffer, error) {
	if !s.caps.Has(CapabilityRender) {
		return nil, fmt.Errorf("plugin %q has no render capability: %w", s.name, lunaris.ErrInvalidArgument)
	}
	r, ok := s.impl.(Renderer)
	if !ok {
		return nil, fmt.Errorf("plugin %q declares render but does not implement Renderer: %w",
			s.name, lunaris.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return r.Render(ctx, id)
}

// Use runs f with the raw instance under the wrapper lock. Escape hatch for
// capabilities without a typed accessor.
func (s *Shared) Use(f func(impl any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.impl)
}

// Registry maps plugin names to shared instances. Registration normally
// happens once at startup; lookups are concurrent and cheap.
type Registry struct {
	plugins *shardmap.Map[string, *Shared]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: shardmap.New[string, *Shared](shardmap.StringHasher)}
}

// Register adds an instance under name with its declared capabilities.
// A duplicate name fails with lunaris.ErrAlreadyExists; the existing
// registration wins.
func (r *Registry) Register(name string, caps Capability, impl any) (*Shared, error) {
	if name == "" || impl == nil {
		return nil, fmt.Errorf("plugin registration needs a name and an instance: %w", lunaris.ErrInvalidArgument)
	}
	if _, ok := r.plugins.Get(name); ok {
		return nil, fmt.Errorf("plugin %q: %w", name, lunaris.ErrAlreadyExists)
	}

	s := &Shared{name: name, caps: caps, impl: impl}
	r.plugins.Set(name, s)
	lunaris.Logger().Info("plugin registered", "name", name, "capabilities", caps.String())
	return s, nil
}

// Lookup returns the shared instance registered under name.
// Fails with lunaris.ErrNotFound for unknown names.
func (r *Registry) Lookup(name string) (*Shared, error) {
	s, ok := r.plugins.Get(name)
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, lunaris.ErrNotFound)
	}
	return s, nil
}

// WithCapability returns every registered plugin declaring all bits of caps.
func (r *Registry) WithCapability(caps Capability) []*Shared {
	var out []*Shared
	r.plugins.Range(func(_ string, s *Shared) bool {
		if s.caps.Has(caps) {
			out = append(out, s)
		}
		return true
	})
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int { return r.plugins.Len() }
