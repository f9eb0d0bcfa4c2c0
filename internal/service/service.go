package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaushik6g/Semantic-Sonifier/internal/bus"
	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/feature"
	"github.com/kaushik6g/Semantic-Sonifier/internal/protocol"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
	"github.com/kaushik6g/Semantic-Sonifier/internal/sonify"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timelinestore"
	"github.com/nats-io/nats.go"
)

const runTimeout = 30 * time.Second

// Service subscribes to document requests, drives the pipeline, persists the
// result, and answers on the bus.
type Service struct {
	cfg       config.ServiceConfig
	bus       *bus.Client
	pipeline  *sonify.Pipeline
	extractor feature.Extractor
	store     *timelinestore.Store
	registry  *Registry
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	sub       *nats.Subscription
	wg        sync.WaitGroup
	ready     bool
}

func NewService(parent context.Context, cfg config.ServiceConfig, busClient *bus.Client, pipeline *sonify.Pipeline, extractor feature.Extractor, store *timelinestore.Store, registry *Registry, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:       cfg,
		bus:       busClient,
		pipeline:  pipeline,
		extractor: extractor,
		store:     store,
		registry:  registry,
		log:       logger.With(slog.String("component", "sonifier-service")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectDocumentRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe document requests: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.DocumentRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.log.Warn("failed to decode document request", slogError(err))
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
		defer cancel()
		s.run(ctx, sessionID, req)
	}()
}

func (s *Service) run(ctx context.Context, sessionID string, req protocol.DocumentRequest) {
	started := time.Now()
	s.registry.Begin(sessionID)

	doc, err := s.document(ctx, req)
	if err != nil {
		s.fail(ctx, sessionID, "extracting", err, started)
		return
	}
	if doc.Len() == 0 {
		s.fail(ctx, sessionID, "validating", errors.New("request produced no segments"), started)
		return
	}

	pipeline := s.pipeline
	if req.MaxTotalDuration != 0 {
		if req.MaxTotalDuration < 1 || req.MaxTotalDuration > s.cfg.DurationCeiling {
			s.fail(ctx, sessionID, "validating",
				fmt.Errorf("max_total_duration %.2f outside 1..%.0f", req.MaxTotalDuration, s.cfg.DurationCeiling), started)
			return
		}
		pipeline = s.pipeline.WithBudget(req.MaxTotalDuration)
	}

	tl, err := pipeline.Run(ctx, doc)
	if err != nil {
		s.fail(ctx, sessionID, "sonifying", err, started)
		return
	}

	if err := s.store.SaveTimeline(ctx, sessionID, doc.Len(), tl); err != nil {
		s.log.Warn("failed to persist timeline",
			slog.String("session_id", sessionID), slogError(err))
	}

	raw, err := tl.Marshal()
	if err != nil {
		s.fail(ctx, sessionID, "publishing", err, started)
		return
	}
	ready := protocol.TimelineReady{
		SessionID: sessionID,
		Segments:  doc.Len(),
		Events:    tl.Len(),
		Span:      tl.Span(),
		Timestamp: time.Now().UTC(),
		Timeline:  raw,
	}
	data, err := json.Marshal(ready)
	if err != nil {
		s.fail(ctx, sessionID, "publishing", err, started)
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectTimelineReady, data); err != nil {
		s.fail(ctx, sessionID, "publishing", err, started)
		return
	}

	s.registry.Complete(ctx, sessionID, tl.Len(), time.Since(started))
	s.log.Info("timeline published",
		slog.String("session_id", sessionID),
		slog.Int("segments", doc.Len()),
		slog.Int("events", tl.Len()),
		slog.Float64("span_seconds", tl.Span()))
}

// document resolves the request's input: explicit segments win, otherwise the
// feature extractor runs on the text. Segment indices are renumbered so the
// buffer is contiguous from zero regardless of what the caller sent.
func (s *Service) document(ctx context.Context, req protocol.DocumentRequest) (semantic.Document, error) {
	if len(req.Segments) > 0 {
		segs := make([]semantic.Segment, len(req.Segments))
		copy(segs, req.Segments)
		for i := range segs {
			segs[i].Index = i
		}
		return semantic.Document{Segments: segs}, nil
	}
	if req.Text == "" {
		return semantic.Document{}, nil
	}
	return s.extractor.Extract(ctx, req.Text)
}

func (s *Service) fail(ctx context.Context, sessionID, stage string, err error, started time.Time) {
	s.registry.Fail(ctx, sessionID, stage, time.Since(started))
	s.log.Error("run failed",
		slog.String("session_id", sessionID),
		slog.String("stage", stage),
		slogError(err))

	notice := protocol.RunFailed{
		SessionID: sessionID,
		Stage:     stage,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(notice)
	if err != nil {
		s.log.Warn("failed to marshal failure notice", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectRunFailed, data); err != nil {
		s.log.Warn("failed to publish failure notice", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
