package reverb

// Patch is a partial parameter update. Nil fields keep the current value.
type Patch struct {
	RoomSize   *float64 `json:"roomSize,omitempty" yaml:"roomSize,omitempty"`
	Damping    *float64 `json:"damping,omitempty" yaml:"damping,omitempty"`
	WetLevel   *float64 `json:"wetLevel,omitempty" yaml:"wetLevel,omitempty"`
	DryLevel   *float64 `json:"dryLevel,omitempty" yaml:"dryLevel,omitempty"`
	PreDelayMs *float64 `json:"preDelayMs,omitempty" yaml:"preDelayMs,omitempty"`
	Width      *float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Freeze     *bool    `json:"freeze,omitempty" yaml:"freeze,omitempty"`
}

// FullPatch returns a patch that sets every field of p.
func FullPatch(p Parameters) Patch {
	return Patch{
		RoomSize:   &p.RoomSize,
		Damping:    &p.Damping,
		WetLevel:   &p.WetLevel,
		DryLevel:   &p.DryLevel,
		PreDelayMs: &p.PreDelayMs,
		Width:      &p.Width,
		Freeze:     &p.Freeze,
	}
}

// IsEmpty reports whether the patch changes nothing.
func (pt Patch) IsEmpty() bool {
	return pt.RoomSize == nil && pt.Damping == nil && pt.WetLevel == nil &&
		pt.DryLevel == nil && pt.PreDelayMs == nil && pt.Width == nil && pt.Freeze == nil
}

// Apply returns base with the patch's fields overlaid. No clamping happens here.
func (pt Patch) Apply(base Parameters) Parameters {
	if pt.RoomSize != nil {
		base.RoomSize = *pt.RoomSize
	}
	if pt.Damping != nil {
		base.Damping = *pt.Damping
	}
	if pt.WetLevel != nil {
		base.WetLevel = *pt.WetLevel
	}
	if pt.DryLevel != nil {
		base.DryLevel = *pt.DryLevel
	}
	if pt.PreDelayMs != nil {
		base.PreDelayMs = *pt.PreDelayMs
	}
	if pt.Width != nil {
		base.Width = *pt.Width
	}
	if pt.Freeze != nil {
		base.Freeze = *pt.Freeze
	}
	return base
}
