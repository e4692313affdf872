package anim

import "sync"

// MeshHandle is a non-owning, generation-checked reference to a mesh held
// by a Registry. Handles are comparable and can be used as map keys.
type MeshHandle struct {
	reg  *Registry
	slot uint32
	gen  uint32
}

// Valid reports whether the referenced mesh is still loaded.
func (h MeshHandle) Valid() bool {
	_, ok := h.Get()
	return ok
}

// Get returns the mesh if it is still loaded.
func (h MeshHandle) Get() (*SkeletalMesh, bool) {
	if h.reg == nil {
		return nil, false
	}
	return h.reg.lookup(h)
}

type registrySlot struct {
	mesh *SkeletalMesh
	gen  uint32
}

// Registry owns loaded meshes and hands out MeshHandles to them. Unloading
// a mesh invalidates every outstanding handle.
type Registry struct {
	mu    sync.RWMutex
	slots []registrySlot
	free  []uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register loads a mesh and returns a handle to it.
func (r *Registry) Register(mesh *SkeletalMesh) MeshHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		slot := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[slot].mesh = mesh
		return MeshHandle{reg: r, slot: slot, gen: r.slots[slot].gen}
	}

	r.slots = append(r.slots, registrySlot{mesh: mesh})
	return MeshHandle{reg: r, slot: uint32(len(r.slots) - 1)}
}

// Unload releases the mesh behind h. It returns false if h was already stale.
func (r *Registry) Unload(h MeshHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.reg != r || int(h.slot) >= len(r.slots) {
		return false
	}
	s := &r.slots[h.slot]
	if s.gen != h.gen || s.mesh == nil {
		return false
	}
	s.mesh = nil
	s.gen++
	r.free = append(r.free, h.slot)
	return true
}

// Len returns the number of loaded meshes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots) - len(r.free)
}

func (r *Registry) lookup(h MeshHandle) (*SkeletalMesh, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(h.slot) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[h.slot]
	if s.gen != h.gen || s.mesh == nil {
		return nil, false
	}
	return s.mesh, true
}
