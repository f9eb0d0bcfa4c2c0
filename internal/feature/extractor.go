// Package feature is the NLP collaborator boundary: it turns raw text into
// scored segments for the sonification pipeline. The engine itself never
// analyzes text; everything text-shaped lives behind the Extractor interface.
package feature

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

// Extractor abstracts feature extraction backends.
type Extractor interface {
	Extract(ctx context.Context, text string) (semantic.Document, error)
}

// New builds the extractor selected by cfg.Mode. The config must already be
// validated; New does not re-check mode-specific options.
func New(cfg config.FeatureConfig) (Extractor, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecExtractor(cfg)
	case "", "mock":
		return NewMockExtractor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown feature mode %q", cfg.Mode)
	}
}

// durationHint estimates how long a segment takes to read aloud, clamped to
// the configured segment duration window.
func durationHint(wordCount int, cfg config.FeatureConfig) float64 {
	d := float64(wordCount) / cfg.WordsPerSecond
	if d < cfg.MinSegmentDuration {
		d = cfg.MinSegmentDuration
	}
	if d > cfg.MaxSegmentDuration {
		d = cfg.MaxSegmentDuration
	}
	return d
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
