package sonify

import (
	"math"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

// Normalizer rescales raw semantic features into comparable bounded ranges:
// [0,1] for plain dimensions, [-1,1] for signed ones. Static mode checks
// every value against the declared per-dimension bounds; document-relative
// mode derives the calibration from a single pass over the document, using
// min-max rescaling or a z-score squash. Rescaling is monotonic in either
// mode, and normalizing against unit bounds is the identity.
type Normalizer struct {
	mode   string
	method string
	bounds map[string]config.DimensionBounds
}

func NewNormalizer(cfg config.CalibrationConfig) *Normalizer {
	method := cfg.Method
	if method == "" {
		method = "minmax"
	}
	bounds := make(map[string]config.DimensionBounds, len(cfg.Bounds))
	for name, b := range cfg.Bounds {
		bounds[name] = b
	}
	return &Normalizer{mode: cfg.Mode, method: method, bounds: bounds}
}

// Signed reports whether a dimension normalizes into [-1,1].
func (n *Normalizer) Signed(dim string) bool {
	return n.bounds[dim].Signed
}

// Normalize rescales every segment's raw features. The returned slice is
// aligned with doc.Segments; the input document is never mutated.
func (n *Normalizer) Normalize(doc semantic.Document) ([]semantic.Features, error) {
	if n.mode == "document-relative" {
		return n.normalizeRelative(doc)
	}
	return n.normalizeStatic(doc)
}

func (n *Normalizer) normalizeStatic(doc semantic.Document) ([]semantic.Features, error) {
	out := make([]semantic.Features, len(doc.Segments))
	for i, seg := range doc.Segments {
		vec := make(semantic.Features, len(seg.Features))
		for dim, raw := range seg.Features {
			b, ok := n.bounds[dim]
			if !ok {
				return nil, &CalibrationError{Dimension: dim, SegmentIndex: i, Undeclared: true}
			}
			if !isFinite(raw) || raw < b.Min || raw > b.Max {
				return nil, &CalibrationError{Dimension: dim, SegmentIndex: i, Value: raw, Min: b.Min, Max: b.Max}
			}
			vec[dim] = rescale(raw, b)
		}
		out[i] = vec
	}
	return out, nil
}

type dimStats struct {
	min   float64
	max   float64
	sum   float64
	sumSq float64
	count int
}

func (n *Normalizer) normalizeRelative(doc semantic.Document) ([]semantic.Features, error) {
	stats := make(map[string]*dimStats)
	for i, seg := range doc.Segments {
		for dim, raw := range seg.Features {
			if !isFinite(raw) {
				b := n.bounds[dim]
				return nil, &CalibrationError{Dimension: dim, SegmentIndex: i, Value: raw, Min: b.Min, Max: b.Max}
			}
			st, ok := stats[dim]
			if !ok {
				st = &dimStats{min: raw, max: raw}
				stats[dim] = st
			}
			if raw < st.min {
				st.min = raw
			}
			if raw > st.max {
				st.max = raw
			}
			st.sum += raw
			st.sumSq += raw * raw
			st.count++
		}
	}

	out := make([]semantic.Features, len(doc.Segments))
	for i, seg := range doc.Segments {
		vec := make(semantic.Features, len(seg.Features))
		for dim, raw := range seg.Features {
			st := stats[dim]
			var unit float64
			if n.method == "zscore" {
				unit = squashZ(raw, st)
			} else {
				unit = rescaleUnit(raw, st.min, st.max)
			}
			if n.Signed(dim) {
				vec[dim] = 2*unit - 1
			} else {
				vec[dim] = unit
			}
		}
		out[i] = vec
	}
	return out, nil
}

// rescale maps a value from its declared bounds onto the unit interval, or
// onto [-1,1] for signed dimensions.
func rescale(v float64, b config.DimensionBounds) float64 {
	u := (v - b.Min) / (b.Max - b.Min)
	if b.Signed {
		return 2*u - 1
	}
	return u
}

// rescaleUnit min-max rescales onto [0,1]. A constant dimension has no
// spread to rescale and sits at the midpoint.
func rescaleUnit(v, min, max float64) float64 {
	if max <= min {
		return 0.5
	}
	return (v - min) / (max - min)
}

// squashZ converts a value to its document z-score and squashes it onto
// [0,1] with tanh, so outliers saturate instead of escaping the bound.
func squashZ(v float64, st *dimStats) float64 {
	mean := st.sum / float64(st.count)
	variance := st.sumSq/float64(st.count) - mean*mean
	if variance <= 0 {
		return 0.5
	}
	z := (v - mean) / math.Sqrt(variance)
	return (1 + math.Tanh(z/2)) / 2
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
