// Package render turns scheduled timelines into audible output. The engine
// never talks to a synthesizer directly; rendering backends live behind the
// Renderer interface, mirroring the feature extractor boundary on the input
// side.
package render

import (
	"context"
	"fmt"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

// Result describes one finished render.
type Result struct {
	SessionID string
	Path      string
	Events    int
	Duration  float64
	PCMBytes  int
}

// Renderer produces audio for a timeline.
type Renderer interface {
	Render(ctx context.Context, sessionID string, tl timeline.Timeline) (Result, error)
}

// New builds the renderer selected by cfg.Mode.
func New(cfg config.RenderConfig) (Renderer, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecRenderer(cfg)
	case "", "mock":
		return NewMockRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown render mode %q", cfg.Mode)
	}
}
