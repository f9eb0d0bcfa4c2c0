package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaushik6g/Semantic-Sonifier/internal/bus"
	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/protocol"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
	"github.com/nats-io/nats.go"
)

const renderTimeout = 2 * time.Minute

// Service forwards finished timelines to the configured renderer and reports
// where the audio landed.
type Service struct {
	cfg      config.RenderConfig
	bus      *bus.Client
	renderer Renderer
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	sub      *nats.Subscription
	wg       sync.WaitGroup
	ready    bool
}

func NewService(parent context.Context, cfg config.RenderConfig, busClient *bus.Client, renderer Renderer, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		renderer: renderer,
		log:      logger.With(slog.String("component", "render-service")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTimelineReady, s.handleTimeline)
	if err != nil {
		return fmt.Errorf("subscribe timeline ready: %w", err)
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

func (s *Service) handleTimeline(msg *nats.Msg) {
	var ready protocol.TimelineReady
	if err := json.Unmarshal(msg.Data, &ready); err != nil {
		s.log.Warn("failed to decode timeline notice", slogError(err))
		return
	}
	tl, err := timeline.Unmarshal(ready.Timeline)
	if err != nil {
		s.log.Warn("failed to decode embedded timeline",
			slog.String("session_id", ready.SessionID), slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, renderTimeout)
		defer cancel()

		res, err := s.renderer.Render(ctx, ready.SessionID, tl)
		if err != nil {
			s.log.Warn("render failed",
				slog.String("session_id", ready.SessionID), slogError(err))
			return
		}
		s.publishDone(res)
	}()
}

func (s *Service) publishDone(res Result) {
	done := protocol.RenderDone{
		SessionID: res.SessionID,
		Path:      res.Path,
		Events:    res.Events,
		PCMBytes:  res.PCMBytes,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(done)
	if err != nil {
		s.log.Warn("failed to marshal render notice", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectRenderDone, data); err != nil {
		s.log.Warn("failed to publish render notice", slogError(err))
		return
	}
	s.log.Info("render complete",
		slog.String("session_id", res.SessionID),
		slog.String("path", res.Path),
		slog.Int("pcm_bytes", res.PCMBytes))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
