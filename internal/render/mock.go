package render

import (
	"context"

	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

type mockRenderer struct{}

// NewMockRenderer returns a renderer that produces no audio. It reports the
// timeline's shape so callers can assert completion.
func NewMockRenderer() Renderer {
	return &mockRenderer{}
}

func (m *mockRenderer) Render(_ context.Context, sessionID string, tl timeline.Timeline) (Result, error) {
	return Result{
		SessionID: sessionID,
		Events:    tl.Len(),
		Duration:  tl.Span(),
	}, nil
}
