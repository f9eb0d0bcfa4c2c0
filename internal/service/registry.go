// Package service hosts the bus-facing side of the sonifier: request
// ingress, run bookkeeping, and the metrics the daemon exports.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry tracks in-flight runs and feeds the run counters and gauges.
type Registry struct {
	log       *slog.Logger
	mu        sync.RWMutex
	active    map[string]time.Time
	completed int64
	failed    int64

	meter       metric.Meter
	activeGauge metric.Int64ObservableGauge
	documents   metric.Int64Counter
	events      metric.Int64Counter
	failures    metric.Int64Counter
	runSeconds  metric.Float64Histogram
}

func NewRegistry(log *slog.Logger) *Registry {
	r := &Registry{
		log:    log.With(slog.String("component", "run-registry")),
		active: make(map[string]time.Time),
		meter:  otel.Meter("github.com/kaushik6g/Semantic-Sonifier/runtime"),
	}
	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return r
}

func (r *Registry) initMetrics() error {
	gauge, err := r.meter.Int64ObservableGauge("sonifier.runs.active",
		metric.WithDescription("Runs currently in flight"))
	if err != nil {
		return err
	}
	r.activeGauge = gauge
	if _, err = r.meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, r.ActiveCount())
		return nil
	}, gauge); err != nil {
		return err
	}

	if r.documents, err = r.meter.Int64Counter("sonifier.documents.sonified",
		metric.WithDescription("Documents successfully sonified")); err != nil {
		return err
	}
	if r.events, err = r.meter.Int64Counter("sonifier.events.scheduled",
		metric.WithDescription("Audio-control events scheduled")); err != nil {
		return err
	}
	if r.failures, err = r.meter.Int64Counter("sonifier.runs.failed",
		metric.WithDescription("Runs ended by a pipeline or collaborator error")); err != nil {
		return err
	}
	if r.runSeconds, err = r.meter.Float64Histogram("sonifier.run.duration.seconds",
		metric.WithDescription("Wall time of one document run")); err != nil {
		return err
	}
	return nil
}

// Begin marks a session's run as in flight.
func (r *Registry) Begin(sessionID string) {
	r.mu.Lock()
	r.active[sessionID] = time.Now()
	r.mu.Unlock()
}

// Complete records a successful run.
func (r *Registry) Complete(ctx context.Context, sessionID string, events int, elapsed time.Duration) {
	r.mu.Lock()
	delete(r.active, sessionID)
	r.completed++
	r.mu.Unlock()

	if r.documents != nil {
		r.documents.Add(ctx, 1)
	}
	if r.events != nil {
		r.events.Add(ctx, int64(events))
	}
	if r.runSeconds != nil {
		r.runSeconds.Record(ctx, elapsed.Seconds())
	}
}

// Fail records a failed run and the stage that ended it.
func (r *Registry) Fail(ctx context.Context, sessionID, stage string, elapsed time.Duration) {
	r.mu.Lock()
	delete(r.active, sessionID)
	r.failed++
	r.mu.Unlock()

	if r.failures != nil {
		r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
	if r.runSeconds != nil {
		r.runSeconds.Record(ctx, elapsed.Seconds())
	}
}

// ActiveCount returns the number of in-flight runs.
func (r *Registry) ActiveCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.active))
}

// Counts returns completed and failed run totals since start.
func (r *Registry) Counts() (completed, failed int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed, r.failed
}
