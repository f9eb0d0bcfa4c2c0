package sonify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func featureDoc(features ...semantic.Features) semantic.Document {
	segs := make([]semantic.Segment, len(features))
	for i, f := range features {
		segs[i] = semantic.Segment{Index: i, DurationHint: 1, Features: f}
	}
	return semantic.Document{Segments: segs}
}

func TestPipelineRisingSentimentRaisesPitch(t *testing.T) {
	cfg := config.DefaultSonify()
	cfg.Modulation.WindowSize = 1
	cfg.Modulation.BlendWeights = map[string]float64{"sentiment": 0.5}

	p, err := NewPipeline(cfg, newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	tl, err := p.Run(context.Background(), featureDoc(
		semantic.Features{"sentiment": 0.1},
		semantic.Features{"sentiment": 0.5},
		semantic.Features{"sentiment": 0.9},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", tl.Len())
	}
	for i := 1; i < tl.Len(); i++ {
		if tl.Events[i].Pitch <= tl.Events[i-1].Pitch {
			t.Fatalf("pitch not strictly increasing at %d: %v then %v",
				i, tl.Events[i-1].Pitch, tl.Events[i].Pitch)
		}
		if tl.Events[i].StartTime < tl.Events[i-1].StartTime {
			t.Fatalf("start times must not decrease at %d", i)
		}
	}
}

func TestPipelineIdempotent(t *testing.T) {
	p, err := NewPipeline(config.DefaultSonify(), newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	doc := featureDoc(
		semantic.Features{"sentiment": -0.3, "topicality": 0.8, "novelty": 0.4, "emphasis": 0.6, "topic": 0.2},
		semantic.Features{"sentiment": 0.7, "topicality": 0.1, "novelty": 0.9, "emphasis": 0.2, "topic": 0.9},
		semantic.Features{"sentiment": 0.0, "topicality": 0.5, "novelty": 0.5, "emphasis": 0.5, "topic": 0.5},
	)

	first, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a, err := first.Marshal()
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := second.Marshal()
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("two runs over identical input differ:\n%s\n%s", a, b)
	}
}

func TestPipelineSingleSegmentWideWindow(t *testing.T) {
	cfg := config.DefaultSonify()
	cfg.Modulation.WindowSize = 3

	p, err := NewPipeline(cfg, newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	tl, err := p.Run(context.Background(), featureDoc(semantic.Features{"sentiment": 0.4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Len() != 1 {
		t.Fatalf("expected exactly one event, got %d", tl.Len())
	}
	if tl.Events[0].StartTime != 0 {
		t.Fatalf("lone event must start at 0, got %v", tl.Events[0].StartTime)
	}
}

func TestPipelineCalibrationFailureNoPartialOutput(t *testing.T) {
	p, err := NewPipeline(config.DefaultSonify(), newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	tl, err := p.Run(context.Background(), featureDoc(
		semantic.Features{"sentiment": 0.2},
		semantic.Features{"mystery": 0.5},
	))
	var calErr *CalibrationError
	if !errors.As(err, &calErr) {
		t.Fatalf("expected *CalibrationError, got %v", err)
	}
	if tl.Len() != 0 {
		t.Fatalf("failed run must not emit a partial timeline, got %d events", tl.Len())
	}
}

func TestPipelineSchedulingOverflow(t *testing.T) {
	cfg := config.DefaultSonify()
	cfg.Schedule.MaxTotalDuration = 2
	cfg.Schedule.MinEventDuration = 0.9

	p, err := NewPipeline(cfg, newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	tl, err := p.Run(context.Background(), featureDoc(
		semantic.Features{"sentiment": 0.1},
		semantic.Features{"sentiment": 0.2},
		semantic.Features{"sentiment": 0.3},
	))
	var overflow *SchedulingOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected *SchedulingOverflowError, got %v", err)
	}
	if tl.Len() != 0 {
		t.Fatalf("failed run must not emit a partial timeline")
	}
}

func TestPipelineRunBatch(t *testing.T) {
	p, err := NewPipeline(config.DefaultSonify(), newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	docs := []semantic.Document{
		featureDoc(semantic.Features{"sentiment": 0.1}),
		featureDoc(semantic.Features{"mystery": 1.0}),
		featureDoc(semantic.Features{"sentiment": 0.9}),
	}
	results := p.RunBatch(context.Background(), docs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Fatalf("result %d carries index %d", i, res.Index)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy documents must succeed: %v / %v", results[0].Err, results[2].Err)
	}
	var calErr *CalibrationError
	if !errors.As(results[1].Err, &calErr) {
		t.Fatalf("expected calibration failure for document 1, got %v", results[1].Err)
	}
	if results[0].Timeline.Len() != 1 || results[2].Timeline.Len() != 1 {
		t.Fatalf("expected one event per healthy document")
	}
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultSonify()
	cfg.Modulation.DefaultBlend = 2

	_, err := NewPipeline(cfg, newLogger())
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestPipelineWithBudgetLeavesOriginal(t *testing.T) {
	p, err := NewPipeline(config.DefaultSonify(), newLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	doc := featureDoc(
		semantic.Features{"sentiment": 0.2},
		semantic.Features{"sentiment": 0.4},
		semantic.Features{"sentiment": 0.6},
	)

	tight, err := p.WithBudget(1.5).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("budgeted run: %v", err)
	}
	if tight.Span() > 1.5+1e-9 {
		t.Fatalf("span %v exceeds requested budget", tight.Span())
	}

	base, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("base run: %v", err)
	}
	if base.Span() <= 1.5 {
		t.Fatalf("original pipeline was mutated: span %v", base.Span())
	}
}
