package feature

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

func mockExtractorForTest() Extractor {
	return NewMockExtractor(config.Default().Feature)
}

func TestMockDeterministic(t *testing.T) {
	ex := mockExtractorForTest()
	text := "The tide rises slowly. Gulls wheel overhead! A cold wind follows."
	a, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	b, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same text produced different documents:\n  a: %+v\n  b: %+v", a, b)
	}
}

func TestMockEmptyText(t *testing.T) {
	ex := mockExtractorForTest()
	for _, text := range []string{"", "   \n\t ", "..."} {
		doc, err := ex.Extract(context.Background(), text)
		if err != nil {
			t.Fatalf("extract %q: %v", text, err)
		}
		if doc.Len() != 0 {
			t.Fatalf("extract %q: got %d segments, want 0", text, doc.Len())
		}
	}
}

func TestMockSegmentOffsets(t *testing.T) {
	ex := mockExtractorForTest()
	text := "Hello world. Goodbye moon!"
	doc, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Len() != 2 {
		t.Fatalf("got %d segments, want 2", doc.Len())
	}
	for i, seg := range doc.Segments {
		if seg.Index != i {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
		if got := text[seg.SourceStart:seg.SourceEnd]; got != seg.Text {
			t.Fatalf("offsets do not slice back to text: %q vs %q", got, seg.Text)
		}
	}
	if doc.Segments[0].Text != "Hello world." {
		t.Fatalf("first segment = %q", doc.Segments[0].Text)
	}
	if doc.Segments[1].Text != "Goodbye moon!" {
		t.Fatalf("second segment = %q", doc.Segments[1].Text)
	}
}

func TestMockFeaturesWithinBounds(t *testing.T) {
	ex := mockExtractorForTest()
	text := "A wonderful bright morning! The storm was terrible and dark. Waves crash, REALLY loud, against the pier."
	doc, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	dims := []string{
		semantic.DimSentiment, semantic.DimTopicality, semantic.DimNovelty,
		semantic.DimEmphasis, semantic.DimTopic,
	}
	for _, seg := range doc.Segments {
		for _, dim := range dims {
			v, ok := seg.Features.Get(dim)
			if !ok {
				t.Fatalf("segment %d missing %s", seg.Index, dim)
			}
			lo := 0.0
			if dim == semantic.DimSentiment {
				lo = -1
			}
			if v < lo || v > 1 {
				t.Fatalf("segment %d %s = %v escapes [%v,1]", seg.Index, dim, v, lo)
			}
		}
	}
}

func TestMockSentimentPolarity(t *testing.T) {
	ex := mockExtractorForTest()
	pos, err := ex.Extract(context.Background(), "I love this wonderful happy day.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	neg, err := ex.Extract(context.Background(), "The terrible awful pain lingers.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := pos.Segments[0].Features[semantic.DimSentiment]; got <= 0 {
		t.Fatalf("positive text scored %v", got)
	}
	if got := neg.Segments[0].Features[semantic.DimSentiment]; got >= 0 {
		t.Fatalf("negative text scored %v", got)
	}
}

func TestMockNoveltyDecays(t *testing.T) {
	ex := mockExtractorForTest()
	doc, err := ex.Extract(context.Background(), "The cat sat. The cat sat.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Len() != 2 {
		t.Fatalf("got %d segments, want 2", doc.Len())
	}
	if got := doc.Segments[0].Features[semantic.DimNovelty]; got != 1 {
		t.Fatalf("first segment novelty = %v, want 1", got)
	}
	if got := doc.Segments[1].Features[semantic.DimNovelty]; got != 0 {
		t.Fatalf("repeated segment novelty = %v, want 0", got)
	}
}

func TestMockEmphasisMarkers(t *testing.T) {
	ex := mockExtractorForTest()
	shouted, err := ex.Extract(context.Background(), "STOP right now!")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	flat, err := ex.Extract(context.Background(), "stop right now")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	loud := shouted.Segments[0].Features[semantic.DimEmphasis]
	quiet := flat.Segments[0].Features[semantic.DimEmphasis]
	if loud <= quiet {
		t.Fatalf("emphasis %v not above %v", loud, quiet)
	}
	if quiet != 0 {
		t.Fatalf("plain text emphasis = %v, want 0", quiet)
	}
}

func TestMockDurationHintClamped(t *testing.T) {
	cfg := config.Default().Feature
	ex := NewMockExtractor(cfg)

	short, err := ex.Extract(context.Background(), "Hi.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := short.Segments[0].DurationHint; got != cfg.MinSegmentDuration {
		t.Fatalf("short hint = %v, want %v", got, cfg.MinSegmentDuration)
	}

	long, err := ex.Extract(context.Background(), strings.TrimSpace(strings.Repeat("word ", 30))+".")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := long.Segments[0].DurationHint; got != cfg.MaxSegmentDuration {
		t.Fatalf("long hint = %v, want %v", got, cfg.MaxSegmentDuration)
	}
}

func TestNewSelectsMode(t *testing.T) {
	cfg := config.Default().Feature
	if _, err := New(cfg); err != nil {
		t.Fatalf("mock mode: %v", err)
	}
	cfg.Mode = "exec"
	cfg.Command = "analyzer --segments"
	if _, err := New(cfg); err != nil {
		t.Fatalf("exec mode: %v", err)
	}
	cfg.Mode = "banana"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExecExtractorRejectsBadCommand(t *testing.T) {
	cfg := config.Default().Feature
	cfg.Mode = "exec"
	cfg.Command = ""
	if _, err := NewExecExtractor(cfg); err == nil {
		t.Fatal("expected error for empty command")
	}
	cfg.Command = "unterminated 'quote"
	if _, err := NewExecExtractor(cfg); err == nil {
		t.Fatal("expected error for unparseable command")
	}
}
