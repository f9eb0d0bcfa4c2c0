package sonify

import (
	"math"
	"sort"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/curve"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
)

// Mapper converts one modulated feature vector and a segment duration into
// an audio parameter tuple. It is a pure value: every audio dimension is an
// explicit sub-mapping from a weighted combination of source dimensions
// through a monotone transfer curve, clamped into its configured range. An
// all-zero vector maps to the neutral tuple: mid pitch, tempo factor 1.0,
// baseline intensity, timbre index 0.
type Mapper struct {
	pitchMid     float64
	pitchHalf    float64
	pitchMin     float64
	pitchMax     float64
	pitchSources []sourceTerm
	pitchShape   curve.Shape

	tempoMin       float64
	tempoMax       float64
	tempoSources   []sourceTerm
	tempoShape     curve.Shape
	durationWeight float64
	refDuration    float64

	baseline         float64
	intensitySources []sourceTerm
	intensityShape   curve.Shape

	timbreSource string
	timbreCount  int
}

type sourceTerm struct {
	dim    string
	weight float64
}

// sortedSources fixes an iteration order for the source weights. Float
// accumulation order must not depend on map iteration, or identical inputs
// could disagree in the last bit between calls.
func sortedSources(weights map[string]float64) []sourceTerm {
	terms := make([]sourceTerm, 0, len(weights))
	for dim, w := range weights {
		terms = append(terms, sourceTerm{dim: dim, weight: w})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].dim < terms[j].dim })
	return terms
}

func NewMapper(cfg config.MappingConfig) (*Mapper, error) {
	pitchShape, err := curve.Resolve(curve.Spec(cfg.Pitch.Curve))
	if err != nil {
		return nil, &config.ConfigurationError{Option: "sonify.mapping.pitch.curve", Reason: err.Error()}
	}
	tempoShape, err := curve.Resolve(curve.Spec(cfg.Tempo.Curve))
	if err != nil {
		return nil, &config.ConfigurationError{Option: "sonify.mapping.tempo.curve", Reason: err.Error()}
	}
	intensityShape, err := curve.Resolve(curve.Spec(cfg.Intensity.Curve))
	if err != nil {
		return nil, &config.ConfigurationError{Option: "sonify.mapping.intensity.curve", Reason: err.Error()}
	}

	return &Mapper{
		pitchMid:     (cfg.Pitch.MinHz + cfg.Pitch.MaxHz) / 2,
		pitchHalf:    (cfg.Pitch.MaxHz - cfg.Pitch.MinHz) / 2,
		pitchMin:     cfg.Pitch.MinHz,
		pitchMax:     cfg.Pitch.MaxHz,
		pitchSources: sortedSources(cfg.Pitch.Sources),
		pitchShape:   curve.Signed(pitchShape),

		tempoMin:       cfg.Tempo.MinFactor,
		tempoMax:       cfg.Tempo.MaxFactor,
		tempoSources:   sortedSources(cfg.Tempo.Sources),
		tempoShape:     curve.Signed(tempoShape),
		durationWeight: cfg.Tempo.DurationWeight,
		refDuration:    cfg.Tempo.ReferenceDuration,

		baseline:         cfg.Intensity.Baseline,
		intensitySources: sortedSources(cfg.Intensity.Sources),
		intensityShape:   intensityShape,

		timbreSource: cfg.Timbre.Source,
		timbreCount:  len(cfg.Timbre.Categories),
	}, nil
}

// Map produces the audio tuple for one segment. StartTime is left zero;
// placement belongs to the scheduler. Non-positive durations skip the tempo
// pace term and carry through as zero-length events.
func (m *Mapper) Map(vec semantic.Features, duration float64) timeline.Event {
	pitch := m.pitchMid + m.pitchHalf*m.pitchShape(drive(vec, m.pitchSources))
	pitch = clamp(pitch, m.pitchMin, m.pitchMax)

	tempo := m.tempoFor(vec, duration)

	intensityDrive := clampRange(drive(vec, m.intensitySources), false)
	intensity := m.baseline + (1-m.baseline)*m.intensityShape(intensityDrive)
	intensity = clamp(intensity, 0, 1)

	if duration < 0 {
		duration = 0
	}

	return timeline.Event{
		Pitch:       pitch,
		TempoFactor: tempo,
		TimbreIndex: m.timbreIndex(vec),
		Intensity:   intensity,
		Duration:    duration,
	}
}

// tempoFor walks the factor away from neutral 1.0 exponentially, so the
// factor and its inverse move symmetrically, then applies the duration pace
// term and clamps into the configured range.
func (m *Mapper) tempoFor(vec semantic.Features, duration float64) float64 {
	s := m.tempoShape(drive(vec, m.tempoSources))
	var tempo float64
	if s >= 0 {
		tempo = math.Pow(m.tempoMax, s)
	} else {
		tempo = math.Pow(1/m.tempoMin, s)
	}
	if duration > 0 && m.durationWeight > 0 {
		tempo *= math.Pow(m.refDuration/duration, m.durationWeight)
	}
	return clamp(tempo, m.tempoMin, m.tempoMax)
}

// timbreIndex buckets the continuous timbre source dimension over the
// configured category count.
func (m *Mapper) timbreIndex(vec semantic.Features) int {
	v := clampRange(sourceValue(vec, m.timbreSource), false)
	idx := int(v * float64(m.timbreCount))
	if idx >= m.timbreCount {
		idx = m.timbreCount - 1
	}
	return idx
}

// drive collapses the configured source dimensions into one value in
// [-1,1]: a weighted sum normalized by total absolute weight. Negative
// weights invert a source's direction without breaking monotonicity.
// Missing dimensions contribute zero; no sources means a neutral drive.
func drive(vec semantic.Features, sources []sourceTerm) float64 {
	var sum, norm float64
	for _, t := range sources {
		sum += t.weight * sourceValue(vec, t.dim)
		norm += math.Abs(t.weight)
	}
	if norm == 0 {
		return 0
	}
	d := sum / norm
	if d < -1 {
		return -1
	}
	if d > 1 {
		return 1
	}
	return d
}

// sourceValue reads one dimension, deriving sentiment_magnitude from the
// signed sentiment dimension on demand.
func sourceValue(vec semantic.Features, dim string) float64 {
	if dim == semantic.DimSentimentMagnitude {
		return math.Abs(vec[semantic.DimSentiment])
	}
	return vec[dim]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
