package eval

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/rigeval/pkg/anim"
)

// PooledData is one reusable evaluation context: the shared runtime context
// plus an orchestrator whose LOD caches are already warm for Key's pose.
// While checked out it is owned by exactly one caller.
type PooledData struct {
	Key          anim.MeshHandle
	Context      *RuntimeContext
	Orchestrator *Orchestrator
}

// Update runs one frame of the entry's orchestrator against its context.
func (d *PooledData) Update(pose *anim.Pose, curves *anim.CurveSet, lod int) Result {
	return d.Orchestrator.Update(d.Context, pose, curves, lod)
}

// Factory builds a new entry for key. It runs without the pool lock held.
type Factory func(key anim.MeshHandle) (*PooledData, error)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the pool logger.
func WithPoolLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// Pool keeps free evaluation contexts per mesh so parallel evaluations can
// skip mapping and cache construction. The lock only guards free-list
// membership; construction and evaluation happen outside it.
type Pool struct {
	factory Factory
	log     *zap.Logger

	mu   sync.Mutex
	free map[anim.MeshHandle][]*PooledData
}

// NewPool creates an empty pool.
func NewPool(factory Factory, opts ...PoolOption) *Pool {
	p := &Pool{
		factory: factory,
		log:     zap.NewNop(),
		free:    make(map[anim.MeshHandle][]*PooledData),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestData checks out an entry for key, building one when none is free.
func (p *Pool) RequestData(key anim.MeshHandle) (*PooledData, error) {
	if !key.Valid() {
		return nil, ErrStaleKey
	}

	if d := p.pop(key); d != nil {
		return d, nil
	}

	d, err := p.factory(key)
	if err != nil {
		return nil, fmt.Errorf("building pool entry: %w", err)
	}
	d.Key = key
	return d, nil
}

func (p *Pool) pop(key anim.MeshHandle) *PooledData {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.free[key]
	n := len(list)
	if n == 0 {
		return nil
	}
	d := list[n-1]
	list[n-1] = nil
	p.free[key] = list[:n-1]
	return d
}

// FreeData returns a checked-out entry to key's free list. The caller must
// not use d afterwards. An entry checked out under a different key is
// dropped, its caches were primed for another mesh.
func (p *Pool) FreeData(key anim.MeshHandle, d *PooledData) {
	if d == nil {
		return
	}
	if d.Key != key {
		p.log.Warn("dropping pool entry freed under a foreign key")
		return
	}
	p.mu.Lock()
	p.free[key] = append(p.free[key], d)
	p.mu.Unlock()
}

// GarbageCollect drops every key whose mesh has been unloaded and returns
// the number of entries released. Entries for live keys are kept.
func (p *Pool) GarbageCollect() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	released := 0
	for key, list := range p.free {
		if key.Valid() {
			continue
		}
		released += len(list)
		delete(p.free, key)
	}
	if released > 0 {
		p.log.Debug("pool garbage collected",
			zap.Int("released", released),
			zap.Int("keys", len(p.free)),
		)
	}
	return released
}

// Len returns the number of free entries across all keys.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, list := range p.free {
		n += len(list)
	}
	return n
}

// Keys returns the number of keys with a free list, empty or not.
func (p *Pool) Keys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
