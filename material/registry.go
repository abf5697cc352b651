// Package material holds the materials meshes are drawn with, keyed by the
// material library that declares them and their name.
package material

import (
	"log/slog"

	"github.com/pkg/errors"

	"meshview/core"
	"meshview/gpu"
)

// Releaser is implemented by materials that own GPU objects.
type Releaser interface {
	Release()
}

// Registry owns materials by key. It must outlive every mesh built against
// it: parts keep references to the registry's materials.
type Registry struct {
	entries map[core.MaterialKey]gpu.Material
	order   []core.MaterialKey
}

var _ gpu.MaterialLookup = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.MaterialKey]gpu.Material)}
}

// Add registers m under key. An existing entry is kept and Add reports false;
// a nil material is never registered.
func (r *Registry) Add(key core.MaterialKey, m gpu.Material) bool {
	if m == nil {
		return false
	}
	if _, ok := r.entries[key]; ok {
		return false
	}
	r.entries[key] = m
	r.order = append(r.order, key)
	return true
}

func (r *Registry) Lookup(key core.MaterialKey) (gpu.Material, bool) {
	m, ok := r.entries[key]
	return m, ok
}

func (r *Registry) Has(key core.MaterialKey) bool {
	_, ok := r.entries[key]
	return ok
}

func (r *Registry) Len() int { return len(r.entries) }

// Keys returns the keys in insertion order.
func (r *Registry) Keys() []core.MaterialKey {
	return append([]core.MaterialKey(nil), r.order...)
}

// Release releases every material that owns GPU objects, in reverse
// insertion order, and empties the registry.
func (r *Registry) Release() {
	for i := len(r.order) - 1; i >= 0; i-- {
		if rel, ok := r.entries[r.order[i]].(Releaser); ok {
			rel.Release()
		}
	}
	r.entries = make(map[core.MaterialKey]gpu.Material)
	r.order = nil
}

// Factory creates the material for one library entry.
type Factory func(desc core.MaterialDesc) (gpu.Material, error)

// LoadLibrary creates and registers every material of lib that is not
// registered yet. It stops at the first material the factory fails on;
// materials registered before the failure stay in the registry.
func LoadLibrary(r *Registry, lib core.MaterialLib, create Factory) error {
	for _, desc := range lib.Materials {
		key := lib.Key(desc.Name)
		if r.Has(key) {
			slog.Debug("material already registered", "key", key.String())
			continue
		}
		m, err := create(desc)
		if err != nil {
			return errors.Wrapf(err, "material %s", key)
		}
		if m == nil {
			return errors.Errorf("material %s: factory returned no material", key)
		}
		r.Add(key, m)
		slog.Debug("material registered", "key", key.String(), "diffuseMap", desc.DiffuseMap)
	}
	return nil
}
