package rig

// Stage identifies one calculation step of the evaluator.
type Stage uint8

// Stages in evaluation order.
const (
	StageMLControls Stage = iota
	StageRBFControls
	StageControls
	StageJoints
	StageBlendShapes
	StageAnimatedMaps
	stageCount
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageMLControls:
		return "MLControls"
	case StageRBFControls:
		return "RBFControls"
	case StageControls:
		return "Controls"
	case StageJoints:
		return "Joints"
	case StageBlendShapes:
		return "BlendShapes"
	case StageAnimatedMaps:
		return "AnimatedMaps"
	default:
		return "Unknown"
	}
}

// StageMask selects a subset of stages.
type StageMask uint8

// StageAll selects every stage.
const StageAll StageMask = 1<<stageCount - 1

// MaskOf builds a mask from stages.
func MaskOf(stages ...Stage) StageMask {
	var m StageMask
	for _, s := range stages {
		m |= 1 << s
	}
	return m
}

// Has reports whether s is selected.
func (m StageMask) Has(s Stage) bool {
	return m&(1<<s) != 0
}

type stageFunc func(*Instance)

func noopStage(*Instance) {}

// buildPipeline resolves each stage once: enabled stages bind to the
// evaluator, disabled ones to noopStage.
func buildPipeline(e Evaluator, cfg Config) [stageCount]stageFunc {
	pick := func(enabled bool, fn stageFunc) stageFunc {
		if enabled {
			return fn
		}
		return noopStage
	}
	return [stageCount]stageFunc{
		StageMLControls:   pick(cfg.EnableMLBehavior, e.CalculateMLControls),
		StageRBFControls:  pick(cfg.EnableRBF, e.CalculateRBFControls),
		StageControls:     e.CalculateControls,
		StageJoints:       pick(cfg.EnableJoints, e.CalculateJoints),
		StageBlendShapes:  pick(cfg.EnableBlendShapes, e.CalculateBlendShapes),
		StageAnimatedMaps: pick(cfg.EnableAnimatedMaps, e.CalculateAnimatedMaps),
	}
}

// Pipeline is a stage sequence with a mask already applied. Masked-out
// stages are bound to noopStage, so Run never branches.
type Pipeline struct {
	stages [stageCount]stageFunc
}

// Run executes every stage, in order, against inst.
func (p *Pipeline) Run(inst *Instance) {
	for _, fn := range p.stages {
		fn(inst)
	}
}
