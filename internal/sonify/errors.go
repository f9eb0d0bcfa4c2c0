package sonify

import "fmt"

// CalibrationError reports a raw feature that cannot be normalized: either
// its dimension is missing from the static calibration bounds, or its value
// falls outside the declared domain.
type CalibrationError struct {
	Dimension    string
	SegmentIndex int
	Value        float64
	Min          float64
	Max          float64
	Undeclared   bool
}

func (e *CalibrationError) Error() string {
	if e.Undeclared {
		return fmt.Sprintf("calibration: segment %d dimension %q not declared in calibration bounds",
			e.SegmentIndex, e.Dimension)
	}
	return fmt.Sprintf("calibration: segment %d dimension %q value %g outside declared bounds [%g, %g]",
		e.SegmentIndex, e.Dimension, e.Value, e.Min, e.Max)
}

// SchedulingOverflowError reports that compressing the timeline into the
// total duration budget would shrink an event below the minimum audible
// duration. The timeline is not emitted in that case.
type SchedulingOverflowError struct {
	EventIndex       int
	ScaledDuration   float64
	MinEventDuration float64
	Span             float64
	Budget           float64
}

func (e *SchedulingOverflowError) Error() string {
	return fmt.Sprintf("scheduling: compressing span %.3fs into budget %.3fs shrinks event %d to %.3fs, below the %.3fs minimum",
		e.Span, e.Budget, e.EventIndex, e.ScaledDuration, e.MinEventDuration)
}
