package rig

// Evaluator turns an instance's control vector into joint, blend shape and
// animated map outputs. Each method reads the instance's current LOD and
// buffers and writes only into that instance. Implementations must be safe
// to call on different instances from different goroutines.
type Evaluator interface {
	CalculateMLControls(inst *Instance)
	CalculateRBFControls(inst *Instance)
	CalculateControls(inst *Instance)
	CalculateJoints(inst *Instance)
	CalculateBlendShapes(inst *Instance)
	CalculateAnimatedMaps(inst *Instance)
}
