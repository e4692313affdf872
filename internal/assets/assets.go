// Package assets shares compiled rigs and index mappings between
// evaluation contexts.
package assets

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/eval"
	"github.com/Faultbox/rigeval/pkg/mapping"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// ErrMeshUnloaded is returned when a pool key no longer resolves to a mesh.
var ErrMeshUnloaded = errors.New("mesh unloaded")

type contextKey struct {
	skeleton *anim.Skeleton
	mesh     *anim.SkeletalMesh
}

// RigProvider owns the current compiled rig and hands out one shared
// RuntimeContext per (skeleton, mesh) pair.
type RigProvider struct {
	log         *zap.Logger
	mappingOpts mapping.Options
	evalOpts    []eval.Option

	mu       sync.Mutex
	cfg      rig.Config
	rig      *rig.CompiledRig
	version  uint64
	contexts map[contextKey]*eval.RuntimeContext

	// Stats
	hits   int
	misses int
}

// Option configures a RigProvider.
type Option func(*RigProvider)

// WithLogger sets the provider logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *RigProvider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMappingOptions sets the curve naming used for new index mappings.
func WithMappingOptions(o mapping.Options) Option {
	return func(p *RigProvider) {
		p.mappingOpts = o
	}
}

// WithOrchestratorOptions sets the options of orchestrators built by
// PoolFactory.
func WithOrchestratorOptions(opts ...eval.Option) Option {
	return func(p *RigProvider) {
		p.evalOpts = opts
	}
}

// NewRigProvider creates a provider with no rig loaded.
func NewRigProvider(cfg rig.Config, opts ...Option) *RigProvider {
	p := &RigProvider{
		log:      zap.NewNop(),
		cfg:      cfg,
		contexts: make(map[contextKey]*eval.RuntimeContext),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reload compiles def and makes it the current rig. Contexts handed out
// before keep working against the old rig; new requests see the new one
// with a higher version.
func (p *RigProvider) Reload(def *rig.Definition) error {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	r, err := rig.Compile(def, cfg)
	if err != nil {
		return fmt.Errorf("reloading rig: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.rig = r
	p.version++
	clear(p.contexts)

	p.log.Info("rig loaded",
		zap.String("rig", r.Name()),
		zap.Stringer("id", r.ID()),
		zap.Uint64("version", p.version),
		zap.Int("lods", r.LODCount()),
		zap.Int("joints", r.JointCount()),
		zap.Int("controls", r.ControlCount()),
	)
	return nil
}

// Unload drops the current rig. Subsequent Context calls return nil.
func (p *RigProvider) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rig = nil
	p.version++
	clear(p.contexts)
}

// Rig returns the current compiled rig, nil when none is loaded.
func (p *RigProvider) Rig() *rig.CompiledRig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rig
}

// Version increases on every Reload and Unload.
func (p *RigProvider) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Context returns the shared runtime context for mesh, building the index
// mapping on first use. It returns nil when no rig is loaded.
func (p *RigProvider) Context(mesh *anim.SkeletalMesh) *eval.RuntimeContext {
	if mesh == nil {
		return nil
	}
	key := contextKey{skeleton: mesh.Skeleton, mesh: mesh}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rig == nil {
		return nil
	}
	if rc, ok := p.contexts[key]; ok {
		p.hits++
		return rc
	}
	p.misses++

	rc := &eval.RuntimeContext{
		Rig:     p.rig,
		Mapping: mapping.Build(p.rig.Definition(), mesh.Skeleton, mesh, p.mappingOpts),
		Version: p.version,
	}
	p.contexts[key] = rc
	p.log.Debug("index mapping built",
		zap.String("mesh", mesh.Name),
		zap.String("skeleton", mesh.Skeleton.Name),
		zap.Int("joints", len(rc.Mapping.Joints())),
		zap.Int("denseDrivers", len(rc.Mapping.DenseDriverJoints())),
		zap.Int("sparseDrivers", len(rc.Mapping.SparseDriverJoints())),
	)
	return rc
}

// Refresh points a pooled entry at the current context of its mesh. It
// reports whether the context changed.
func (p *RigProvider) Refresh(d *eval.PooledData) bool {
	mesh, _ := d.Key.Get()
	rc := p.Context(mesh)
	if rc == d.Context {
		return false
	}
	d.Context = rc
	return true
}

// PoolFactory returns an eval.Factory building entries whose orchestrator
// caches are primed for every LOD the mesh and rig share.
func (p *RigProvider) PoolFactory() eval.Factory {
	return func(key anim.MeshHandle) (*eval.PooledData, error) {
		mesh, ok := key.Get()
		if !ok {
			return nil, ErrMeshUnloaded
		}
		d := &eval.PooledData{
			Key:          key,
			Context:      p.Context(mesh),
			Orchestrator: eval.NewOrchestrator(p.evalOpts...),
		}
		if !d.Context.Valid() {
			return d, nil
		}

		lods := min(mesh.NumLODs(), d.Context.Rig.LODCount())
		for lod := 0; lod < lods; lod++ {
			pose, err := anim.NewPose(mesh, lod)
			if err != nil {
				return nil, err
			}
			if err := d.Orchestrator.Prime(d.Context, pose, lod); err != nil {
				return nil, fmt.Errorf("priming LOD %d: %w", lod, err)
			}
		}
		return d, nil
	}
}

// Len returns the number of cached contexts.
func (p *RigProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.contexts)
}

// Stats returns context cache statistics.
func (p *RigProvider) Stats() (hits, misses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}
