// Package semantic holds the input-side data model: segments of source text
// and the named feature scores attached to them by the feature extractor.
package semantic

import "sort"

// Dimension names bound by the default configuration. The engine itself is
// name-driven; nothing below is special-cased outside config defaults.
const (
	DimSentiment  = "sentiment"
	DimTopicality = "topicality"
	DimNovelty    = "novelty"
	DimEmphasis   = "emphasis"
	DimTopic      = "topic"
)

// DimSentimentMagnitude is a derived pseudo-dimension available only as a
// mapping source; extractors never emit it.
const DimSentimentMagnitude = "sentiment_magnitude"

// Features maps a dimension name to its score. Treated as immutable once a
// segment is built; use Clone before mutating.
type Features map[string]float64

// Clone returns an independent copy.
func (f Features) Clone() Features {
	if f == nil {
		return nil
	}
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Dimensions returns the dimension names in lexical order.
func (f Features) Dimensions() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get returns the score for a dimension and whether it is present.
func (f Features) Get(name string) (float64, bool) {
	v, ok := f[name]
	return v, ok
}

// Segment is one unit of source text with its raw feature vector. Produced
// once by the feature extractor and never mutated afterwards.
type Segment struct {
	Index        int      `json:"index"`
	SourceStart  int      `json:"source_start"`
	SourceEnd    int      `json:"source_end"`
	Text         string   `json:"text,omitempty"`
	DurationHint float64  `json:"duration_hint"`
	Features     Features `json:"features"`
}

// Document is the ordered segment buffer for one pipeline run.
type Document struct {
	Segments []Segment `json:"segments"`
}

// Len returns the number of segments.
func (d Document) Len() int { return len(d.Segments) }

// TotalHint sums the per-segment duration hints in seconds.
func (d Document) TotalHint() float64 {
	var total float64
	for _, s := range d.Segments {
		total += s.DurationHint
	}
	return total
}

// DimensionSet returns every dimension name appearing in any segment,
// lexically ordered.
func (d Document) DimensionSet() []string {
	seen := map[string]struct{}{}
	for _, s := range d.Segments {
		for k := range s.Features {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
