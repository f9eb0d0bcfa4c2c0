package feature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
	"github.com/mattn/go-shellwords"
)

type execExtractor struct {
	cmd []string
	cfg config.FeatureConfig
	mu  sync.Mutex
}

type execSegment struct {
	Text         string             `json:"text"`
	SourceStart  int                `json:"source_start"`
	SourceEnd    int                `json:"source_end"`
	DurationHint float64            `json:"duration_hint"`
	Features     map[string]float64 `json:"features"`
}

// NewExecExtractor wraps an external analyzer command. The command receives
// {"text": ...} JSON on stdin and must answer a JSON array of segments with
// per-dimension feature scores.
func NewExecExtractor(cfg config.FeatureConfig) (Extractor, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse feature command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("feature command is empty")
	}
	return &execExtractor{cmd: args, cfg: cfg}, nil
}

func (e *execExtractor) Extract(ctx context.Context, text string) (semantic.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return semantic.Document{}, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return semantic.Document{}, fmt.Errorf("feature command failed: %w: %s", err, stderr.String())
	}

	var raw []execSegment
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return semantic.Document{}, fmt.Errorf("decode feature response: %w", err)
	}

	doc := semantic.Document{Segments: make([]semantic.Segment, 0, len(raw))}
	for i, rs := range raw {
		hint := rs.DurationHint
		if hint <= 0 {
			hint = durationHint(countWords(rs.Text), e.cfg)
		}
		doc.Segments = append(doc.Segments, semantic.Segment{
			Index:        i,
			SourceStart:  rs.SourceStart,
			SourceEnd:    rs.SourceEnd,
			Text:         rs.Text,
			DurationHint: hint,
			Features:     semantic.Features(rs.Features),
		})
	}
	return doc, nil
}
