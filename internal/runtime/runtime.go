// Package runtime assembles the sonifier daemon: telemetry, the message bus,
// the timeline store, the pipeline services and the HTTP surface, with one
// blocking Start that tears everything down in reverse when the context ends.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaushik6g/Semantic-Sonifier/internal/bus"
	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/feature"
	"github.com/kaushik6g/Semantic-Sonifier/internal/natsserver"
	"github.com/kaushik6g/Semantic-Sonifier/internal/render"
	"github.com/kaushik6g/Semantic-Sonifier/internal/service"
	"github.com/kaushik6g/Semantic-Sonifier/internal/sonify"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timelinestore"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	bus         *bus.Client
	store       *timelinestore.Store
	sonifier    *service.Service
	render      *render.Service
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the daemon up and blocks until ctx is cancelled. Components
// are closed in reverse start order on the way out: services first so
// in-flight runs can still reach the store and the bus, telemetry last.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	defer func() {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelClose()
		if err := r.tracerClose(closeCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS server: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	r.bus = busClient
	defer busClient.Close()

	store, err := timelinestore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open timeline store: %w", err)
	}
	r.store = store
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Error("timeline store close error", slog.String("error", err.Error()))
		}
	}()

	pipeline, err := sonify.NewPipeline(r.cfg.Sonify, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build sonification pipeline: %w", err)
	}

	extractor, err := feature.New(r.cfg.Feature)
	if err != nil {
		return fmt.Errorf("failed to build feature extractor: %w", err)
	}

	registry := service.NewRegistry(r.logger)

	sonifier := service.NewService(ctx, r.cfg.Service, busClient, pipeline, extractor, store, registry, r.logger)
	if err := sonifier.Start(); err != nil {
		return fmt.Errorf("failed to start sonifier service: %w", err)
	}
	r.sonifier = sonifier
	defer sonifier.Close()

	var renderer render.Renderer
	if r.cfg.Render.Enabled {
		renderer, err = render.New(r.cfg.Render)
		if err != nil {
			return fmt.Errorf("failed to build renderer: %w", err)
		}
	}
	renderSvc := render.NewService(ctx, r.cfg.Render, busClient, renderer, r.logger)
	if err := renderSvc.Start(); err != nil {
		return fmt.Errorf("failed to start render service: %w", err)
	}
	r.render = renderSvc
	defer renderSvc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("GET /v1/timelines/{session}", r.handleTimeline)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.readyForTraffic() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) readyForTraffic() bool {
	if !r.ready.Load() {
		return false
	}
	if !r.bus.Healthy() {
		return false
	}
	if r.sonifier != nil && !r.sonifier.Healthy() {
		return false
	}
	if r.render != nil && !r.render.Healthy() {
		return false
	}
	return true
}

type timelineResponse struct {
	SessionID string          `json:"session_id"`
	Segments  int             `json:"segments"`
	Events    int             `json:"events"`
	Span      float64         `json:"span_seconds"`
	CreatedAt time.Time       `json:"created_at"`
	Timeline  json.RawMessage `json:"timeline"`
}

func (r *Runtime) handleTimeline(w http.ResponseWriter, req *http.Request) {
	session := req.PathValue("session")
	rec, err := r.store.LoadTimeline(req.Context(), session)
	if err != nil {
		if errors.Is(err, timelinestore.ErrNotFound) {
			http.Error(w, "timeline not found", http.StatusNotFound)
			return
		}
		r.logger.Error("timeline lookup failed",
			slog.String("session_id", session),
			slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := timelineResponse{
		SessionID: rec.SessionID,
		Segments:  rec.Segments,
		Events:    rec.Events,
		Span:      rec.Span,
		CreatedAt: rec.CreatedAt,
		Timeline:  json.RawMessage(rec.Timeline),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		r.logger.Warn("timeline response write failed", slog.String("error", err.Error()))
	}
}
