package sonify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

// State names one phase of a pipeline run. A run advances linearly from
// Idle through Done; Failed is terminal and reachable from any phase.
type State int

const (
	StateIdle State = iota
	StateNormalizing
	StateModulating
	StateMapping
	StateScheduling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNormalizing:
		return "normalizing"
	case StateModulating:
		return "modulating"
	case StateMapping:
		return "mapping"
	case StateScheduling:
		return "scheduling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline wires the normalizer, modulator, mapper and scheduler into the
// document-to-timeline transform. Stages run strictly in sequence, each
// consuming the previous stage's full output, because modulation needs the
// whole document in view. A Pipeline is immutable after construction, so
// runs over independent documents may execute concurrently.
type Pipeline struct {
	normalizer *Normalizer
	modulator  *Modulator
	mapper     *Mapper
	scheduler  *Scheduler
	log        *slog.Logger
	tracer     trace.Tracer
}

// NewPipeline validates the configuration and builds the stage components.
// Curve resolution happens here, so configuration mistakes (including a
// broken WASM curve module) surface before any document is processed.
func NewPipeline(cfg config.SonifyConfig, logger *slog.Logger) (*Pipeline, error) {
	if err := config.ValidateSonify(cfg); err != nil {
		return nil, err
	}
	mapper, err := NewMapper(cfg.Mapping)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := NewNormalizer(cfg.Calibration)
	return &Pipeline{
		normalizer: normalizer,
		modulator:  NewModulator(cfg.Modulation, normalizer.Signed),
		mapper:     mapper,
		scheduler:  NewScheduler(cfg.Schedule),
		log:        logger.With(slog.String("component", "sonify")),
		tracer:     otel.Tracer("github.com/kaushik6g/Semantic-Sonifier/sonify"),
	}, nil
}

// Run transforms one document into its event timeline. On error no partial
// timeline is returned; the error carries the failing stage and matches the
// typed taxonomy via errors.As.
func (p *Pipeline) Run(ctx context.Context, doc semantic.Document) (timeline.Timeline, error) {
	started := time.Now()
	ctx, runSpan := p.tracer.Start(ctx, "sonify.run",
		trace.WithAttributes(attribute.Int("sonify.segments", doc.Len())))
	defer runSpan.End()

	state := StateNormalizing
	stageStart := time.Now()
	_, normSpan := p.tracer.Start(ctx, "sonify.normalize")
	normalized, err := p.normalizer.Normalize(doc)
	normSpan.End()
	if err != nil {
		return timeline.Timeline{}, p.fail(state, err)
	}
	p.logStage(state, stageStart)

	state = StateModulating
	stageStart = time.Now()
	_, modSpan := p.tracer.Start(ctx, "sonify.modulate")
	modulated := p.modulator.Modulate(normalized)
	modSpan.End()
	p.logStage(state, stageStart)

	state = StateMapping
	stageStart = time.Now()
	_, mapSpan := p.tracer.Start(ctx, "sonify.map")
	events := make([]timeline.Event, len(modulated))
	hints := make([]float64, len(modulated))
	var cursor float64
	for i, seg := range doc.Segments {
		ev := p.mapper.Map(modulated[i], seg.DurationHint)
		ev.Index = i
		ev.SourceStart = seg.SourceStart
		ev.SourceEnd = seg.SourceEnd
		events[i] = ev
		hints[i] = cursor
		cursor += ev.Duration
	}
	mapSpan.End()
	p.logStage(state, stageStart)

	state = StateScheduling
	stageStart = time.Now()
	_, schedSpan := p.tracer.Start(ctx, "sonify.schedule")
	tl, err := p.scheduler.Schedule(events, hints)
	schedSpan.End()
	if err != nil {
		return timeline.Timeline{}, p.fail(state, err)
	}
	p.logStage(state, stageStart)

	runSpan.SetAttributes(
		attribute.Int("sonify.events", tl.Len()),
		attribute.Float64("sonify.span_seconds", tl.Span()),
	)
	p.log.Debug("pipeline run complete",
		slog.Int("segments", doc.Len()),
		slog.Int("events", tl.Len()),
		slog.Float64("span_seconds", tl.Span()),
		slog.Duration("elapsed", time.Since(started)))

	return tl, nil
}

func (p *Pipeline) fail(state State, err error) error {
	p.log.Error("pipeline run failed",
		slog.String("state", state.String()),
		slog.String("error", err.Error()))
	return fmt.Errorf("%s: %w", state, err)
}

func (p *Pipeline) logStage(state State, started time.Time) {
	p.log.Debug("stage complete",
		slog.String("stage", state.String()),
		slog.Duration("elapsed", time.Since(started)))
}

// WithBudget returns a copy of the pipeline whose scheduler enforces a
// different total duration budget. The receiver is unchanged, so a shared
// pipeline stays safe for concurrent runs while individual requests override
// the budget.
func (p *Pipeline) WithBudget(maxTotal float64) *Pipeline {
	clone := *p
	sched := *p.scheduler
	sched.maxTotal = maxTotal
	clone.scheduler = &sched
	return &clone
}

// BatchResult pairs one document's outcome with its position in the batch.
type BatchResult struct {
	Index    int
	Timeline timeline.Timeline
	Err      error
}

// RunBatch processes independent documents concurrently. Results keep input
// order, and one document failing does not stop its siblings.
func (p *Pipeline) RunBatch(ctx context.Context, docs []semantic.Document) []BatchResult {
	results := make([]BatchResult, len(docs))
	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc semantic.Document) {
			defer wg.Done()
			tl, err := p.Run(ctx, doc)
			results[i] = BatchResult{Index: i, Timeline: tl, Err: err}
		}(i, doc)
	}
	wg.Wait()
	return results
}
