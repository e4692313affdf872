package eval

import (
	"go.uber.org/zap"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/mapping"
	"github.com/Faultbox/rigeval/pkg/math"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// Result describes what an Update did.
type Result int

const (
	// Evaluated means the pose and curves were updated.
	Evaluated Result = iota
	// SkippedNoRig means no valid runtime context was bound; host buffers
	// were left untouched.
	SkippedNoRig
	// SkippedInvalidLOD means the requested LOD does not exist in the rig;
	// host buffers were left untouched.
	SkippedInvalidLOD
)

// String returns a human-readable result.
func (r Result) String() string {
	switch r {
	case Evaluated:
		return "Evaluated"
	case SkippedNoRig:
		return "SkippedNoRig"
	case SkippedInvalidLOD:
		return "SkippedInvalidLOD"
	default:
		return "Unknown"
	}
}

// Orchestrator runs the per-frame pipeline for one rig instance:
// cache mappings, update controls, evaluate, scatter. It is not safe for
// concurrent use; the shared rig and mapping it reads are.
type Orchestrator struct {
	log           *zap.Logger
	useCurveIndex bool
	stages        rig.StageMask

	rig      *rig.CompiledRig
	mapping  *mapping.IndexMapping
	inst     *rig.Instance
	pipeline rig.Pipeline
	caches   []lodCache
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCurveIndexCache selects map lookups of curve names instead of a
// name-by-name union against the rig's control list.
func WithCurveIndexCache(enabled bool) Option {
	return func(o *Orchestrator) {
		o.useCurveIndex = enabled
	}
}

// WithStageMask restricts which evaluator stages run.
func WithStageMask(m rig.StageMask) Option {
	return func(o *Orchestrator) {
		o.stages = m
	}
}

// NewOrchestrator creates an unbound orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:           zap.NewNop(),
		useCurveIndex: true,
		stages:        rig.StageAll,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Instance returns the bound rig instance, nil before the first bind.
func (o *Orchestrator) Instance() *rig.Instance {
	return o.inst
}

// bind attaches the orchestrator to rc. A new rig replaces the instance;
// a new rig or mapping drops every cached LOD entry.
func (o *Orchestrator) bind(rc *RuntimeContext) {
	switch {
	case rc.Rig != o.rig:
		o.log.Info("binding rig",
			zap.String("rig", rc.Rig.Name()),
			zap.Stringer("id", rc.Rig.ID()),
			zap.Uint64("version", rc.Version),
		)
		o.inst = rig.NewInstance(rc.Rig)
		o.pipeline = rc.Rig.Pipeline(o.stages)
		o.caches = newLODCaches(rc.Rig.LODCount())
	case rc.Mapping != o.mapping:
		o.log.Debug("index mapping changed", zap.Uint64("version", rc.Version))
		resetLODCaches(o.caches)
	}
	o.rig = rc.Rig
	o.mapping = rc.Mapping
}

// Prime binds rc and builds the cache entry for lod against pose without
// evaluating anything.
func (o *Orchestrator) Prime(rc *RuntimeContext, pose *anim.Pose, lod int) error {
	if !rc.Valid() {
		return ErrNoRuntimeContext
	}
	o.bind(rc)
	if lod < 0 || lod >= len(o.caches) {
		return rig.ErrLODOutOfRange
	}
	o.caches[lod].rebuild(o.rig, o.mapping, pose, lod)
	return nil
}

// Update evaluates one frame. When rc is missing or lod is invalid the
// frame is skipped and pose and curves are left as they were.
func (o *Orchestrator) Update(rc *RuntimeContext, pose *anim.Pose, curves *anim.CurveSet, lod int) Result {
	if !rc.Valid() {
		o.log.Debug("skipping rig evaluation: no runtime context")
		return SkippedNoRig
	}
	o.bind(rc)
	if err := o.inst.SetLOD(lod); err != nil {
		o.log.Debug("skipping rig evaluation", zap.Int("lod", lod), zap.Error(err))
		return SkippedInvalidLOD
	}

	entry := &o.caches[lod]
	if entry.stale(pose) {
		entry.rebuild(o.rig, o.mapping, pose, lod)
	}

	o.updateControls(pose, curves, entry)
	o.pipeline.Run(o.inst)
	o.scatter(pose, curves, entry, lod)
	return Evaluated
}

func (o *Orchestrator) updateControls(pose *anim.Pose, curves *anim.CurveSet, entry *lodCache) {
	o.inst.ResetRawControls()
	raw := o.inst.RawControls()

	if o.useCurveIndex {
		for _, c := range curves.Curves() {
			if i, ok := o.mapping.ControlIndex(c.Name); ok {
				raw[i] = math.Clamp(c.Value, 0, 1)
			}
		}
	} else {
		curves.Union(o.mapping.ControlCurves(), func(value float32, index int) {
			raw[index] = math.Clamp(value, 0, 1)
		})
	}

	cfg := o.rig.Config()
	if cfg.EnableMLBehavior && o.rig.NeuralNetworkCount() > 0 {
		mask := o.inst.MLMask()
		for i := range mask {
			mask[i] = 1
		}
		if o.useCurveIndex {
			for _, c := range curves.Curves() {
				if i, ok := o.mapping.MaskIndex(c.Name); ok {
					mask[i] = c.Value
				}
			}
		} else {
			curves.Union(o.mapping.NeuralNetworkMaskCurves(), func(value float32, index int) {
				mask[index] = value
			})
		}
	}

	if cfg.DriverJointsEnabled() {
		for i := range entry.sparse {
			d := &entry.sparse[i]
			delta := d.inverseNeutral.Mul(pose.Bone(d.bone).Rotation)
			if d.x != rig.NoControl {
				raw[d.x] = delta.X
			}
			if d.y != rig.NoControl {
				raw[d.y] = delta.Y
			}
			if d.z != rig.NoControl {
				raw[d.z] = delta.Z
			}
			if d.w != rig.NoControl {
				raw[d.w] = delta.W
			}
		}
		for i := range entry.dense {
			d := &entry.dense[i]
			delta := d.inverseNeutral.Mul(pose.Bone(d.bone).Rotation)
			raw[d.x] = delta.X
			raw[d.y] = delta.Y
			raw[d.z] = delta.Z
			raw[d.w] = delta.W
		}
	}
}

func (o *Orchestrator) scatter(pose *anim.Pose, curves *anim.CurveSet, entry *lodCache, lod int) {
	cfg := o.rig.Config()

	if cfg.EnableJoints {
		neutral := o.rig.NeutralJointValues()
		deltas := o.inst.JointOutputs()
		for _, b := range entry.joints {
			base := int(b.joint) * math.TransformStride
			n := math.TransformFromSlice(neutral[base:])
			d := math.TransformFromSlice(deltas[base:])
			pose.SetBone(b.bone, n.Compose(d))
		}
	}

	if cfg.EnableBlendShapes {
		weights := o.inst.BlendShapeOutputs()
		for _, c := range o.mapping.BlendShapeCurves(lod) {
			curves.Set(c.Curve, weights[c.Index], anim.CurveMorphTarget)
		}
	}

	if cfg.EnableAnimatedMaps {
		weights := o.inst.AnimatedMapOutputs()
		for _, c := range o.mapping.AnimatedMapCurves(lod) {
			curves.Set(c.Curve, weights[c.Index], anim.CurveMaterial)
		}
	}
}
