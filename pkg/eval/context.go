// Package eval drives per-frame rig evaluation: it feeds host curves and
// driver-joint rotations into a rig instance, runs the compiled rig and
// scatters the results back into the host pose and curves.
package eval

import (
	"errors"

	"github.com/Faultbox/rigeval/pkg/mapping"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// Evaluation errors.
var (
	ErrNoRuntimeContext = errors.New("no rig runtime context")
	ErrStaleKey         = errors.New("pool key no longer valid")
)

// RuntimeContext is the shared, read-only pair every instance bound to the
// same (skeleton, mesh) evaluates against. A provider replaces the whole
// context, never its fields, when the rig changes.
type RuntimeContext struct {
	Rig     *rig.CompiledRig
	Mapping *mapping.IndexMapping
	// Version increases each time the provider swaps in a new context for
	// the same asset.
	Version uint64
}

// Valid reports whether both shared references are present and the
// mapping was built from the rig's definition.
func (rc *RuntimeContext) Valid() bool {
	return rc != nil && rc.Rig != nil && rc.Mapping != nil &&
		rc.Mapping.BuiltFor(rc.Rig.Definition())
}
