// Package rig holds the compiled, shared, read-only rig and the per-evaluation
// instance state it drives.
package rig

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Rig errors.
var (
	ErrInvalidDefinition = errors.New("invalid rig definition")
	ErrLODOutOfRange     = errors.New("LOD out of range")
	ErrIndexOutOfRange   = errors.New("index out of range")
)

// CompiledRig is an immutable rig shared by every instance evaluating it.
// All methods are safe for concurrent use.
type CompiledRig struct {
	id  uuid.UUID
	def *Definition
	cfg Config

	rawControls int
	psdControls int
	mlControls  int
	rbfControls int

	evaluator Evaluator
	stages    [stageCount]stageFunc
}

// CompileOption customises Compile.
type CompileOption func(*compileOptions)

type compileOptions struct {
	evaluator Evaluator
}

// WithEvaluator replaces the reference evaluator.
func WithEvaluator(e Evaluator) CompileOption {
	return func(o *compileOptions) {
		o.evaluator = e
	}
}

// Compile validates def and builds a shared rig. The definition must not be
// modified afterwards.
func Compile(def *Definition, cfg Config, opts ...CompileOption) (*CompiledRig, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.evaluator == nil {
		le, err := newLinearEvaluator(def)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", def.Name, err)
		}
		o.evaluator = le
	}

	return &CompiledRig{
		id:          uuid.New(),
		def:         def,
		cfg:         cfg,
		rawControls: len(def.RawControlNames),
		psdControls: len(def.Behavior.PSDs),
		mlControls:  def.MLControlCount,
		rbfControls: def.RBFPoseControlCount,
		evaluator:   o.evaluator,
		stages:      buildPipeline(o.evaluator, cfg),
	}, nil
}

// ID uniquely identifies this compilation.
func (r *CompiledRig) ID() uuid.UUID {
	return r.id
}

// Name returns the rig name.
func (r *CompiledRig) Name() string {
	return r.def.Name
}

// Definition returns the source definition. It must be treated as read-only.
func (r *CompiledRig) Definition() *Definition {
	return r.def
}

// Config returns the calculation flags the rig was compiled with.
func (r *CompiledRig) Config() Config {
	return r.cfg
}

// LODCount returns the number of LOD levels.
func (r *CompiledRig) LODCount() int {
	return len(r.def.LODs)
}

// JointCount returns the total number of rig joints.
func (r *CompiledRig) JointCount() int {
	return len(r.def.JointNames)
}

// NeutralJointValues returns the flat neutral pose, ten floats per joint.
// The slice must not be modified.
func (r *CompiledRig) NeutralJointValues() []float32 {
	return r.def.NeutralJointValues
}

// RawControlCount returns the number of raw controls.
func (r *CompiledRig) RawControlCount() int { return r.rawControls }

// PSDControlCount returns the number of PSD controls.
func (r *CompiledRig) PSDControlCount() int { return r.psdControls }

// MLControlCount returns the number of ML-driven controls.
func (r *CompiledRig) MLControlCount() int { return r.mlControls }

// RBFPoseControlCount returns the number of RBF pose controls.
func (r *CompiledRig) RBFPoseControlCount() int { return r.rbfControls }

// ControlCount returns the size of the full control vector.
func (r *CompiledRig) ControlCount() int {
	return r.rawControls + r.psdControls + r.mlControls + r.rbfControls
}

// NeuralNetworkCount returns the number of neural networks.
func (r *CompiledRig) NeuralNetworkCount() int {
	return len(r.def.NeuralNetworkNames)
}

// BlendShapeChannelCount returns the number of blend shape channels.
func (r *CompiledRig) BlendShapeChannelCount() int {
	return len(r.def.BlendShapeChannelNames)
}

// AnimatedMapCount returns the number of animated maps.
func (r *CompiledRig) AnimatedMapCount() int {
	return len(r.def.AnimatedMapNames)
}

func (r *CompiledRig) lodIndices(lod int) (*LODIndices, error) {
	if lod < 0 || lod >= len(r.def.LODs) {
		return nil, fmt.Errorf("%w: %d (rig %s has %d)", ErrLODOutOfRange, lod, r.def.Name, len(r.def.LODs))
	}
	return &r.def.LODs[lod], nil
}

// JointIndicesForLOD returns the variable joints evaluated at lod.
func (r *CompiledRig) JointIndicesForLOD(lod int) ([]uint16, error) {
	l, err := r.lodIndices(lod)
	if err != nil {
		return nil, err
	}
	return l.Joints, nil
}

// RBFSolverIndicesForLOD returns the RBF solvers evaluated at lod.
func (r *CompiledRig) RBFSolverIndicesForLOD(lod int) ([]uint16, error) {
	l, err := r.lodIndices(lod)
	if err != nil {
		return nil, err
	}
	return l.RBFSolvers, nil
}

// NeuralNetworkIndicesForLOD returns the neural networks evaluated at lod.
func (r *CompiledRig) NeuralNetworkIndicesForLOD(lod int) ([]uint16, error) {
	l, err := r.lodIndices(lod)
	if err != nil {
		return nil, err
	}
	return l.NeuralNetworks, nil
}

// BlendShapeChannelIndicesForLOD returns the blend shape channels evaluated at lod.
func (r *CompiledRig) BlendShapeChannelIndicesForLOD(lod int) ([]uint16, error) {
	l, err := r.lodIndices(lod)
	if err != nil {
		return nil, err
	}
	return l.BlendShapeChannels, nil
}

// AnimatedMapIndicesForLOD returns the animated maps evaluated at lod.
func (r *CompiledRig) AnimatedMapIndicesForLOD(lod int) ([]uint16, error) {
	l, err := r.lodIndices(lod)
	if err != nil {
		return nil, err
	}
	return l.AnimatedMaps, nil
}

// JointGroupIndicesForLOD returns the joint attribute groups evaluated at lod.
func (r *CompiledRig) JointGroupIndicesForLOD(lod int) ([]uint16, error) {
	l, err := r.lodIndices(lod)
	if err != nil {
		return nil, err
	}
	return l.JointGroups, nil
}

// Pipeline resolves mask against the compiled stages once. Callers that
// evaluate every frame keep the result and call Run.
func (r *CompiledRig) Pipeline(mask StageMask) Pipeline {
	p := Pipeline{stages: r.stages}
	for s := range p.stages {
		if !mask.Has(Stage(s)) {
			p.stages[s] = noopStage
		}
	}
	return p
}

// Evaluate runs the selected stages, in order, against inst. Only inst is
// modified. The mask is resolved on every call; see Pipeline.
func (r *CompiledRig) Evaluate(inst *Instance, mask StageMask) {
	p := r.Pipeline(mask)
	p.Run(inst)
}
