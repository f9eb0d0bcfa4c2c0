package sonify

import (
	"errors"
	"math"
	"testing"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

func testSchedule() config.ScheduleConfig {
	return config.ScheduleConfig{
		MinGap:           0.05,
		MaxOverlap:       0.25,
		MaxTotalDuration: 10,
		MinEventDuration: 0.25,
	}
}

func eventsWithDurations(durations ...float64) []timeline.Event {
	evs := make([]timeline.Event, len(durations))
	for i, d := range durations {
		evs[i] = timeline.Event{Index: i, Duration: d}
	}
	return evs
}

func TestScheduleContiguousPlacement(t *testing.T) {
	s := NewScheduler(testSchedule())
	tl, err := s.Schedule(eventsWithDurations(1, 2, 1), []float64{0, 1, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStarts := []float64{0, 1, 3}
	for i, ev := range tl.Events {
		if ev.StartTime != wantStarts[i] {
			t.Fatalf("event %d: want start %v, got %v", i, wantStarts[i], ev.StartTime)
		}
	}
	if tl.Span() != 4 {
		t.Fatalf("expected span 4, got %v", tl.Span())
	}
}

func TestScheduleStartsNonDecreasing(t *testing.T) {
	s := NewScheduler(testSchedule())
	tl, err := s.Schedule(eventsWithDurations(0.5, 3, 0.4, 1), []float64{0, 0.2, 0, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < tl.Len(); i++ {
		if tl.Events[i].StartTime < tl.Events[i-1].StartTime {
			t.Fatalf("start times decrease at %d: %v then %v",
				i, tl.Events[i-1].StartTime, tl.Events[i].StartTime)
		}
	}
}

func TestScheduleCapsOverlap(t *testing.T) {
	s := NewScheduler(testSchedule())
	// Second event asks to start far inside the first one.
	tl, err := s.Schedule(eventsWithDurations(1, 1), []float64{0, 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overlap := tl.Events[0].End() - tl.Events[1].StartTime
	if overlap > 0.25+1e-12 {
		t.Fatalf("overlap %v exceeds maxOverlap", overlap)
	}
	if tl.Events[1].StartTime != 0.75 {
		t.Fatalf("expected start pulled to 0.75, got %v", tl.Events[1].StartTime)
	}
}

func TestScheduleEnforcesMinGap(t *testing.T) {
	s := NewScheduler(testSchedule())
	// A sliver of a gap gets widened to exactly minGap.
	tl, err := s.Schedule(eventsWithDurations(1, 1), []float64{0, 1.02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tl.Events[1].StartTime; got != 1.05 {
		t.Fatalf("expected start pushed to 1.05, got %v", got)
	}
}

func TestScheduleHonorsLateHint(t *testing.T) {
	s := NewScheduler(testSchedule())
	tl, err := s.Schedule(eventsWithDurations(1, 1), []float64{0, 2.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tl.Events[1].StartTime; got != 2.5 {
		t.Fatalf("late hint must hold, got %v", got)
	}
}

func TestScheduleCompressesUniformly(t *testing.T) {
	cfg := testSchedule()
	cfg.MaxTotalDuration = 10
	s := NewScheduler(cfg)
	tl, err := s.Schedule(eventsWithDurations(3, 3, 3, 3), []float64{0, 3, 6, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span := tl.Span(); span > 10+1e-9 {
		t.Fatalf("span %v exceeds budget", span)
	}
	// 12s of content in a 10s budget: everything scales by 5/6.
	scale := 10.0 / 12.0
	for i, ev := range tl.Events {
		if math.Abs(ev.Duration-3*scale) > 1e-9 {
			t.Fatalf("event %d duration %v not uniformly scaled", i, ev.Duration)
		}
		if math.Abs(ev.StartTime-float64(i)*3*scale) > 1e-9 {
			t.Fatalf("event %d start %v not uniformly scaled", i, ev.StartTime)
		}
	}
}

func TestScheduleOverflowError(t *testing.T) {
	cfg := testSchedule()
	cfg.MaxTotalDuration = 1
	cfg.MinEventDuration = 0.5
	s := NewScheduler(cfg)
	_, err := s.Schedule(eventsWithDurations(1, 1, 1, 1), []float64{0, 1, 2, 3})
	var overflow *SchedulingOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected *SchedulingOverflowError, got %v", err)
	}
	if overflow.Budget != 1 || overflow.MinEventDuration != 0.5 {
		t.Fatalf("unexpected error detail: %+v", overflow)
	}
	if overflow.ScaledDuration >= overflow.MinEventDuration {
		t.Fatalf("reported duration %v not below threshold", overflow.ScaledDuration)
	}
}

func TestScheduleCompressionKeepsAudibleEvents(t *testing.T) {
	cfg := testSchedule()
	cfg.MaxTotalDuration = 1
	cfg.MinEventDuration = 0.5
	s := NewScheduler(cfg)
	// 2s into 1s halves the events to exactly the audible floor.
	tl, err := s.Schedule(eventsWithDurations(1, 1), []float64{0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ev := range tl.Events {
		if ev.Duration < 0.5 {
			t.Fatalf("event %d compressed below floor: %v", i, ev.Duration)
		}
	}
}

func TestScheduleEmptyInput(t *testing.T) {
	s := NewScheduler(testSchedule())
	tl, err := s.Schedule(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Len() != 0 {
		t.Fatalf("expected empty timeline, got %d events", tl.Len())
	}
}

func TestScheduleInputNotMutated(t *testing.T) {
	s := NewScheduler(testSchedule())
	in := eventsWithDurations(1, 1)
	if _, err := s.Schedule(in, []float64{0, 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in[1].StartTime != 0 {
		t.Fatalf("input slice was mutated: %+v", in[1])
	}
}
