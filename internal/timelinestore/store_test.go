package timelinestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleTimeline(n int) timeline.Timeline {
	var tl timeline.Timeline
	for i := 0; i < n; i++ {
		tl.Events = append(tl.Events, timeline.Event{
			Index:       i,
			Pitch:       440 + float64(i)*10,
			TempoFactor: 1,
			TimbreIndex: i,
			Intensity:   0.5,
			StartTime:   float64(i),
			Duration:    0.9,
			SourceStart: i * 10,
			SourceEnd:   i*10 + 9,
		})
	}
	return tl
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	st, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.SaveTimeline(ctx, "session-1", 2, sampleTimeline(2)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := st.LoadTimeline(ctx, "session-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "timelines.db"), RetentionMode: "session"}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open timeline store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	tl := sampleTimeline(2)
	if err := st.SaveTimeline(context.Background(), "session-123", 2, tl); err != nil {
		t.Fatalf("save timeline: %v", err)
	}
	rec, err := st.LoadTimeline(context.Background(), "session-123")
	if err != nil {
		t.Fatalf("load timeline: %v", err)
	}
	if rec.SessionID != "session-123" || rec.Segments != 2 || rec.Events != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Span != tl.Span() {
		t.Fatalf("span = %v, want %v", rec.Span, tl.Span())
	}
	back, err := timeline.Unmarshal(rec.Timeline)
	if err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !reflect.DeepEqual(tl, back) {
		t.Fatalf("stored timeline mismatch:\n  in:  %+v\n  out: %+v", tl, back)
	}
}

func TestLoadMissingSession(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "timelines.db"), RetentionMode: "session"}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open timeline store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, err := st.LoadTimeline(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionModeKeepsLatest(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "timelines.db"), RetentionMode: "session"}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open timeline store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.SaveTimeline(context.Background(), "session-1", 1, sampleTimeline(1)); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := st.SaveTimeline(context.Background(), "session-1", 3, sampleTimeline(3)); err != nil {
		t.Fatalf("save second: %v", err)
	}
	rec, err := st.LoadTimeline(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Events != 3 || rec.Segments != 3 {
		t.Fatalf("expected latest run, got %+v", rec)
	}
}

func TestPruneByDaysAndDocuments(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{
		Path:          filepath.Join(tmp, "timelines.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxDocuments:  1,
	}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open timeline store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	st.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := st.SaveTimeline(context.Background(), "old-session", 1, sampleTimeline(1)); err != nil {
		t.Fatalf("save old: %v", err)
	}

	st.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := st.SaveTimeline(context.Background(), "new-session", 1, sampleTimeline(1)); err != nil {
		t.Fatalf("save new: %v", err)
	}
	if err := st.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, err := st.LoadTimeline(context.Background(), "old-session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old session pruned, got %v", err)
	}
	if _, err := st.LoadTimeline(context.Background(), "new-session"); err != nil {
		t.Fatalf("new session must survive prune: %v", err)
	}
}
