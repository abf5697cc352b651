package gpu

// DrawStats counts what one Submitter.Draw call did.
type DrawStats struct {
	Parts         int `json:"parts"`
	DrawCalls     int `json:"drawCalls"`
	Indices       int `json:"indices"`
	MaterialBinds int `json:"materialBinds"`
	BindsSkipped  int `json:"bindsSkipped"`
}

// Add accumulates o into s.
func (s *DrawStats) Add(o DrawStats) {
	s.Parts += o.Parts
	s.DrawCalls += o.DrawCalls
	s.Indices += o.Indices
	s.MaterialBinds += o.MaterialBinds
	s.BindsSkipped += o.BindsSkipped
}

// Submitter issues the draw calls of a mesh, one per part, and avoids binding
// a material that is already bound. The bound material is remembered across
// Draw calls, so one Submitter should be kept for the lifetime of the context.
type Submitter struct {
	dev   Device
	slot  uint32
	bound Material
}

// NewSubmitter returns a Submitter that binds materials to texture unit slot.
func NewSubmitter(dev Device, slot uint32) *Submitter {
	return &Submitter{dev: dev, slot: slot}
}

// Invalidate forgets the tracked material. Call it after anything else binds
// textures to the submitter's slot.
func (s *Submitter) Invalidate() {
	s.bound = nil
}

// Bound returns the material the submitter believes is currently bound.
func (s *Submitter) Bound() Material {
	return s.bound
}

// Draw binds m and draws its parts in declaration order. Parts without
// indices are skipped.
func (s *Submitter) Draw(m *Mesh) DrawStats {
	var st DrawStats
	m.Bind()
	for _, p := range m.parts {
		st.Parts++
		if p.Count == 0 {
			continue
		}
		if p.Material != s.bound {
			p.Material.Bind(s.slot)
			s.bound = p.Material
			st.MaterialBinds++
		} else {
			st.BindsSkipped++
		}
		s.dev.DrawElements(p.Count, p.Offset)
		st.DrawCalls++
		st.Indices += int(p.Count)
	}
	return st
}
