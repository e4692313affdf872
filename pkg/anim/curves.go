package anim

// CurveFlags records where a curve value came from.
type CurveFlags uint8

const (
	// CurveMorphTarget marks a curve driving a blend shape.
	CurveMorphTarget CurveFlags = 1 << iota
	// CurveMaterial marks a curve driving a material parameter or mask.
	CurveMaterial
)

// String returns a human-readable flag set.
func (f CurveFlags) String() string {
	switch f {
	case 0:
		return "None"
	case CurveMorphTarget:
		return "MorphTarget"
	case CurveMaterial:
		return "Material"
	case CurveMorphTarget | CurveMaterial:
		return "MorphTarget|Material"
	default:
		return "Unknown"
	}
}

// Curve is a named scalar value.
type Curve struct {
	Name  string
	Value float32
	Flags CurveFlags
}

// NamedIndex pairs a curve name with an index on the far side of a union.
type NamedIndex struct {
	Name  string
	Index int
}

// CurveSet is an ordered collection of named curves. Insertion order is
// preserved; setting an existing name updates it in place.
type CurveSet struct {
	curves []Curve
	index  map[string]int
}

// NewCurveSet creates an empty curve set.
func NewCurveSet() *CurveSet {
	return &CurveSet{index: make(map[string]int)}
}

// Len returns the number of curves.
func (c *CurveSet) Len() int {
	return len(c.curves)
}

// Set writes a curve value, appending the curve if it is new.
func (c *CurveSet) Set(name string, value float32, flags CurveFlags) {
	if i, ok := c.index[name]; ok {
		c.curves[i].Value = value
		c.curves[i].Flags |= flags
		return
	}
	c.index[name] = len(c.curves)
	c.curves = append(c.curves, Curve{Name: name, Value: value, Flags: flags})
}

// Get returns a curve value.
func (c *CurveSet) Get(name string) (float32, bool) {
	i, ok := c.index[name]
	if !ok {
		return 0, false
	}
	return c.curves[i].Value, true
}

// Flags returns the flags of a curve, zero when absent.
func (c *CurveSet) Flags(name string) CurveFlags {
	if i, ok := c.index[name]; ok {
		return c.curves[i].Flags
	}
	return 0
}

// Curves returns the curves in insertion order. The slice must not be
// modified.
func (c *CurveSet) Curves() []Curve {
	return c.curves
}

// Each calls fn for every curve in order.
func (c *CurveSet) Each(fn func(name string, value float32)) {
	for i := range c.curves {
		fn(c.curves[i].Name, c.curves[i].Value)
	}
}

// Union calls fn once per (curve, entry) pair whose names match. This is
// a plain name comparison over both collections.
func (c *CurveSet) Union(entries []NamedIndex, fn func(value float32, index int)) {
	for i := range c.curves {
		for _, e := range entries {
			if c.curves[i].Name == e.Name {
				fn(c.curves[i].Value, e.Index)
			}
		}
	}
}

// Reset removes every curve.
func (c *CurveSet) Reset() {
	c.curves = c.curves[:0]
	clear(c.index)
}
