package protocol

import (
	"encoding/json"
	"time"

	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

const (
	SubjectDocumentRequest = "sonify.document.request"
	SubjectTimelineReady   = "sonify.timeline.ready"
	SubjectRunFailed       = "sonify.run.failed"
	SubjectRenderDone      = "sonify.render.done"
)

// DocumentRequest asks the sonifier service for a timeline. Either Text or
// Segments must be present; when Segments is empty the configured feature
// extractor runs on Text. MaxTotalDuration overrides the scheduler budget for
// this run only, bounded by the configured ceiling.
type DocumentRequest struct {
	SessionID        string             `json:"session_id,omitempty"`
	Text             string             `json:"text,omitempty"`
	Segments         []semantic.Segment `json:"segments,omitempty"`
	MaxTotalDuration float64            `json:"max_total_duration,omitempty"`
}

// TimelineReady announces a finished run. Timeline carries the full event
// list exactly as the timeline package marshals it, so subscribers decode it
// losslessly.
type TimelineReady struct {
	SessionID string          `json:"session_id"`
	Segments  int             `json:"segments"`
	Events    int             `json:"events"`
	Span      float64         `json:"span_seconds"`
	Timestamp time.Time       `json:"timestamp"`
	Timeline  json.RawMessage `json:"timeline"`
}

// RunFailed reports a failed run and the pipeline stage it failed in.
type RunFailed struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RenderDone reports where the rendered audio landed.
type RenderDone struct {
	SessionID string    `json:"session_id"`
	Path      string    `json:"path,omitempty"`
	Events    int       `json:"events"`
	PCMBytes  int       `json:"pcm_bytes"`
	Timestamp time.Time `json:"timestamp"`
}
