package rig

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/rigeval/pkg/math"
)

// JointAttributeCount is the number of raw joint attributes a joint group
// row can address per joint: translation XYZ, rotation XYZ (Euler,
// radians), scale XYZ.
const JointAttributeCount = 9

// Behavior is the evaluation data consumed by the reference evaluator.
// Control indices address the full control vector.
type Behavior struct {
	PSDs           []PSD
	NeuralNetworks []NeuralNetwork
	RBFSolvers     []RBFSolver
	JointGroups    []JointGroup
	// BlendShapeInputs maps each blend shape channel to its driving control.
	BlendShapeInputs []int
	AnimatedMaps     []RangeMapping
}

// PSD is a pose-space corrective: the clamped product of weighted inputs.
type PSD struct {
	Output  int
	Inputs  []int
	Weights []float32
}

// NeuralNetwork is a single dense tanh layer. Weights is row-major with one
// row per output.
type NeuralNetwork struct {
	Inputs  []int
	Outputs []int
	Weights []float32
	Biases  []float32
}

// RBFPose is a target rotation and the control it activates.
type RBFPose struct {
	Target math.Quat
	Output int
}

// RBFSolver weights each pose by the angular distance between the input
// quaternion (four raw controls, X Y Z W) and the pose target. Radius is the
// angle in radians at which a pose weight reaches zero; zero means pi.
type RBFSolver struct {
	Inputs [4]int
	Radius float32
	Poses  []RBFPose
}

// JointGroup is a dense block mapping controls to joint attributes.
// Outputs hold joint*JointAttributeCount+attribute, sorted so the rows kept
// at coarser LODs come first. Values is row-major, one row per output.
type JointGroup struct {
	Inputs  []int
	Outputs []int
	Values  []float32
	// LODRows is the number of leading output rows evaluated at each LOD.
	LODRows []int
}

// RangeMapping adds Slope*v+Cut to Output when From < v <= To.
type RangeMapping struct {
	Input, Output        int
	From, To, Slope, Cut float32
}

// linearEvaluator is the reference Evaluator. Per-LOD element lists are
// resolved once at construction.
type linearEvaluator struct {
	b     *Behavior
	lods  []linearLOD
	rbfLo int
	rbfHi int
}

type linearLOD struct {
	joints      []uint16
	networks    []uint16
	solvers     []uint16
	groups      []uint16
	channels    []uint16
	animMaps    []int // entries into Behavior.AnimatedMaps
	animOutputs []uint16
}

func newLinearEvaluator(def *Definition) (*linearEvaluator, error) {
	b := &def.Behavior
	controls := def.ControlCount()
	checkControl := func(what string, c int) error {
		if c < 0 || c >= controls {
			return fmt.Errorf("%s control %d: %w", what, c, ErrIndexOutOfRange)
		}
		return nil
	}

	raw := len(def.RawControlNames)
	for i, p := range b.PSDs {
		if p.Output < raw || p.Output >= raw+len(b.PSDs) {
			return nil, fmt.Errorf("%w: psd %d output %d outside PSD region", ErrInvalidDefinition, i, p.Output)
		}
		if len(p.Weights) != len(p.Inputs) {
			return nil, fmt.Errorf("%w: psd %d weight count", ErrInvalidDefinition, i)
		}
		for _, in := range p.Inputs {
			if err := checkControl("psd input", in); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
			}
		}
	}
	if len(b.NeuralNetworks) != 0 && len(b.NeuralNetworks) != len(def.NeuralNetworkNames) {
		return nil, fmt.Errorf("%w: %d networks for %d names", ErrInvalidDefinition, len(b.NeuralNetworks), len(def.NeuralNetworkNames))
	}
	for i, n := range b.NeuralNetworks {
		if len(n.Weights) != len(n.Inputs)*len(n.Outputs) || len(n.Biases) != len(n.Outputs) {
			return nil, fmt.Errorf("%w: network %d shape", ErrInvalidDefinition, i)
		}
		for _, c := range append(append([]int(nil), n.Inputs...), n.Outputs...) {
			if err := checkControl("network", c); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
			}
		}
	}
	for i, s := range b.RBFSolvers {
		for _, c := range s.Inputs {
			if err := checkControl("rbf input", c); err != nil {
				return nil, fmt.Errorf("%w: solver %d: %w", ErrInvalidDefinition, i, err)
			}
		}
		for _, p := range s.Poses {
			if err := checkControl("rbf pose", p.Output); err != nil {
				return nil, fmt.Errorf("%w: solver %d: %w", ErrInvalidDefinition, i, err)
			}
		}
	}
	for i, g := range b.JointGroups {
		if len(g.Values) != len(g.Inputs)*len(g.Outputs) || len(g.LODRows) != len(def.LODs) {
			return nil, fmt.Errorf("%w: joint group %d shape", ErrInvalidDefinition, i)
		}
		for _, c := range g.Inputs {
			if err := checkControl("joint group input", c); err != nil {
				return nil, fmt.Errorf("%w: group %d: %w", ErrInvalidDefinition, i, err)
			}
		}
		for _, a := range g.Outputs {
			if a < 0 || a >= len(def.JointNames)*JointAttributeCount {
				return nil, fmt.Errorf("%w: joint group %d attribute %d", ErrInvalidDefinition, i, a)
			}
		}
	}
	if len(b.BlendShapeInputs) != 0 && len(b.BlendShapeInputs) != len(def.BlendShapeChannelNames) {
		return nil, fmt.Errorf("%w: %d blend shape inputs for %d channels", ErrInvalidDefinition, len(b.BlendShapeInputs), len(def.BlendShapeChannelNames))
	}
	for ch, in := range b.BlendShapeInputs {
		if in != NoControl {
			if err := checkControl("blend shape input", in); err != nil {
				return nil, fmt.Errorf("%w: channel %d: %w", ErrInvalidDefinition, ch, err)
			}
		}
	}
	for i, m := range b.AnimatedMaps {
		if err := checkControl("animated map input", m.Input); err != nil {
			return nil, fmt.Errorf("%w: animated map entry %d: %w", ErrInvalidDefinition, i, err)
		}
		if m.Output < 0 || m.Output >= len(def.AnimatedMapNames) {
			return nil, fmt.Errorf("%w: animated map entry %d output %d", ErrInvalidDefinition, i, m.Output)
		}
	}

	e := &linearEvaluator{
		b:     b,
		lods:  make([]linearLOD, len(def.LODs)),
		rbfLo: raw + len(b.PSDs) + def.MLControlCount,
	}
	e.rbfHi = e.rbfLo + def.RBFPoseControlCount

	for lod, l := range def.LODs {
		active := make(map[uint16]bool, len(l.Joints))
		for _, j := range l.Joints {
			active[j] = true
		}
		for _, g := range l.JointGroups {
			group := &b.JointGroups[g]
			rows := group.LODRows[lod]
			if rows < 0 || rows > len(group.Outputs) {
				return nil, fmt.Errorf("%w: joint group %d LOD %d rows %d", ErrInvalidDefinition, g, lod, rows)
			}
			for _, a := range group.Outputs[:rows] {
				if !active[uint16(a/JointAttributeCount)] {
					return nil, fmt.Errorf("%w: joint group %d drives joint %d not active at LOD %d", ErrInvalidDefinition, g, a/JointAttributeCount, lod)
				}
			}
		}

		maps := make(map[uint16]bool, len(l.AnimatedMaps))
		for _, m := range l.AnimatedMaps {
			maps[m] = true
		}
		var entries []int
		for i, m := range b.AnimatedMaps {
			if maps[uint16(m.Output)] {
				entries = append(entries, i)
			}
		}

		e.lods[lod] = linearLOD{
			joints:      l.Joints,
			networks:    l.NeuralNetworks,
			solvers:     l.RBFSolvers,
			groups:      l.JointGroups,
			channels:    l.BlendShapeChannels,
			animMaps:    entries,
			animOutputs: l.AnimatedMaps,
		}
	}
	return e, nil
}

func (e *linearEvaluator) CalculateMLControls(inst *Instance) {
	controls := inst.Controls()
	clear(inst.MLControls())
	if len(e.b.NeuralNetworks) == 0 {
		return
	}
	mask := inst.MLMask()
	for _, n := range e.lods[inst.LOD()].networks {
		net := &e.b.NeuralNetworks[n]
		cols := len(net.Inputs)
		for o, out := range net.Outputs {
			v := net.Biases[o]
			row := net.Weights[o*cols : (o+1)*cols]
			for c, in := range net.Inputs {
				v += row[c] * controls[in]
			}
			controls[out] = float32(gomath.Tanh(float64(v))) * mask[n]
		}
	}
}

func (e *linearEvaluator) CalculateRBFControls(inst *Instance) {
	controls := inst.Controls()
	clear(controls[e.rbfLo:e.rbfHi])
	for _, s := range e.lods[inst.LOD()].solvers {
		solver := &e.b.RBFSolvers[s]
		q := math.Quat{
			X: controls[solver.Inputs[0]],
			Y: controls[solver.Inputs[1]],
			Z: controls[solver.Inputs[2]],
			W: controls[solver.Inputs[3]],
		}.Normalize()
		radius := solver.Radius
		if radius <= 0 {
			radius = gomath.Pi
		}
		for _, p := range solver.Poses {
			d := gomath.Abs(float64(q.Dot(p.Target.Normalize())))
			angle := 2 * gomath.Acos(gomath.Min(d, 1))
			controls[p.Output] = math.Clamp(1-float32(angle)/radius, 0, 1)
		}
	}
}

func (e *linearEvaluator) CalculateControls(inst *Instance) {
	controls := inst.Controls()
	for _, p := range e.b.PSDs {
		v := float32(1)
		for i, in := range p.Inputs {
			v *= controls[in] * p.Weights[i]
		}
		controls[p.Output] = math.Clamp(v, 0, 1)
	}
}

func (e *linearEvaluator) CalculateJoints(inst *Instance) {
	l := &e.lods[inst.LOD()]
	controls := inst.Controls()
	out := inst.JointOutputs()

	// Rotation slots accumulate Euler angles until the final conversion.
	for _, j := range l.joints {
		clear(out[int(j)*math.TransformStride : (int(j)+1)*math.TransformStride])
	}

	lod := inst.LOD()
	for _, g := range l.groups {
		group := &e.b.JointGroups[g]
		cols := len(group.Inputs)
		for r, attr := range group.Outputs[:group.LODRows[lod]] {
			row := group.Values[r*cols : (r+1)*cols]
			var v float32
			for c, in := range group.Inputs {
				v += row[c] * controls[in]
			}
			out[attributeOffset(attr)] += v
		}
	}

	for _, j := range l.joints {
		base := int(j) * math.TransformStride
		rot := out[base+math.RotationOffset:]
		math.QuatFromEuler(rot[0], rot[1], rot[2]).Store(rot)
	}
}

func (e *linearEvaluator) CalculateBlendShapes(inst *Instance) {
	out := inst.BlendShapeOutputs()
	clear(out)
	if len(e.b.BlendShapeInputs) == 0 {
		return
	}
	controls := inst.Controls()
	for _, ch := range e.lods[inst.LOD()].channels {
		if in := e.b.BlendShapeInputs[ch]; in != NoControl {
			out[ch] = controls[in]
		}
	}
}

func (e *linearEvaluator) CalculateAnimatedMaps(inst *Instance) {
	l := &e.lods[inst.LOD()]
	out := inst.AnimatedMapOutputs()
	clear(out)
	controls := inst.Controls()
	for _, i := range l.animMaps {
		m := &e.b.AnimatedMaps[i]
		v := controls[m.Input]
		if m.From < v && v <= m.To {
			out[m.Output] += m.Slope*v + m.Cut
		}
	}
	for _, m := range l.animOutputs {
		out[m] = math.Clamp(out[m], 0, 1)
	}
}

// attributeOffset maps joint*9+attribute to its slot in the 10-wide delta
// block. Rotation attributes land in the X, Y, Z quaternion slots.
func attributeOffset(attr int) int {
	joint, a := attr/JointAttributeCount, attr%JointAttributeCount
	base := joint * math.TransformStride
	switch {
	case a < 3:
		return base + math.TranslationOffset + a
	case a < 6:
		return base + math.RotationOffset + a - 3
	default:
		return base + math.ScaleOffset + a - 6
	}
}
