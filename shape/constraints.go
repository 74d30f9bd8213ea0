package shape

// Constraints are resolved declarative refinements attached to a struct
// field. Bounds are only meaningful on numeric primitive shapes; at most one
// of the inclusive/exclusive pair may be set per side. Rename replaces the
// parent's property key, not anything on the node itself.
type Constraints struct {
	MinIncl *float64
	MinExcl *float64
	MaxIncl *float64
	MaxExcl *float64
	Rename  string
}

// HasBounds reports whether any numeric bound is set.
func (c Constraints) HasBounds() bool {
	return c.MinIncl != nil || c.MinExcl != nil || c.MaxIncl != nil || c.MaxExcl != nil
}

// Empty reports whether the constraints carry no refinement at all.
func (c Constraints) Empty() bool {
	return !c.HasBounds() && c.Rename == ""
}

// Bound returns a pointer to v for use in Constraints literals.
func Bound(v float64) *float64 { return &v }
