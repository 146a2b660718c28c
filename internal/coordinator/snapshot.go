package coordinator

// Snapshot is a fixed SimulationContext, used by the CLI and batch imports
// where there are no live widgets to read from. A nil *Snapshot reads as a
// context with nothing solved.
type Snapshot struct {
	Type     string
	Controls map[string]any
	Initial  []float64
	Start    float64
	End      float64
	Result   map[string]any
}

func (s *Snapshot) EquationType() string {
	if s == nil {
		return ""
	}
	return s.Type
}

func (s *Snapshot) ControlValues() map[string]any {
	if s == nil {
		return nil
	}
	return s.Controls
}

func (s *Snapshot) InitialConditions() []float64 {
	if s == nil {
		return nil
	}
	return s.Initial
}

func (s *Snapshot) TimeRange() (float64, float64) {
	if s == nil {
		return 0, 0
	}
	return s.Start, s.End
}

func (s *Snapshot) Solution() map[string]any {
	if s == nil {
		return nil
	}
	return s.Result
}
