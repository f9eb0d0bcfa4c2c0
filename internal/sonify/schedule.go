package sonify

import (
	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

// Scheduler places mapped events onto a single monotonic timeline. Start
// hints are "not before" requests: an event never starts earlier than its
// hint, and with no hint it follows the previous event directly. A hint
// that reaches back before the running end overlaps by at most maxOverlap;
// a hint that leaves a positive gap smaller than minGap is pushed out to
// exactly minGap. When the placed span exceeds maxTotalDuration the whole
// timeline is compressed by one uniform factor, starts and durations alike,
// so no segment is dropped; compression that would shrink any event below
// minEventDuration aborts with a SchedulingOverflowError.
type Scheduler struct {
	minGap     float64
	maxOverlap float64
	maxTotal   float64
	minEvent   float64
}

func NewScheduler(cfg config.ScheduleConfig) *Scheduler {
	return &Scheduler{
		minGap:     cfg.MinGap,
		maxOverlap: cfg.MaxOverlap,
		maxTotal:   cfg.MaxTotalDuration,
		minEvent:   cfg.MinEventDuration,
	}
}

// Schedule assigns start times to events in order. hints is aligned with
// events; a hint of zero means unconstrained. The input slice is not
// mutated.
func (s *Scheduler) Schedule(events []timeline.Event, hints []float64) (timeline.Timeline, error) {
	if len(events) == 0 {
		return timeline.Timeline{}, nil
	}

	placed := make([]timeline.Event, len(events))
	copy(placed, events)

	first := 0.0
	if len(hints) > 0 && hints[0] > 0 {
		first = hints[0]
	}
	placed[0].StartTime = first

	for i := 1; i < len(placed); i++ {
		prev := placed[i-1]
		prevEnd := prev.End()

		desired := prevEnd
		if i < len(hints) && hints[i] > 0 {
			desired = hints[i]
		}

		start := desired
		if start < prevEnd-s.maxOverlap {
			start = prevEnd - s.maxOverlap
		}
		if start > prevEnd && start < prevEnd+s.minGap {
			start = prevEnd + s.minGap
		}
		if start < prev.StartTime {
			start = prev.StartTime
		}
		placed[i].StartTime = start
	}

	var span float64
	for _, ev := range placed {
		if end := ev.End(); end > span {
			span = end
		}
	}
	if span > s.maxTotal {
		scale := s.maxTotal / span
		for i := range placed {
			placed[i].StartTime *= scale
			placed[i].Duration *= scale
			if placed[i].Duration < s.minEvent {
				return timeline.Timeline{}, &SchedulingOverflowError{
					EventIndex:       i,
					ScaledDuration:   placed[i].Duration,
					MinEventDuration: s.minEvent,
					Span:             span,
					Budget:           s.maxTotal,
				}
			}
		}
	}

	return timeline.Timeline{Events: placed}, nil
}
