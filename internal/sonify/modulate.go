package sonify

import (
	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

// Modulator blends each segment's normalized features with a weighted
// average over a symmetric window of neighbors, so sustained trends carry
// across segments while single-segment spikes survive in proportion to the
// per-dimension blend. Windows truncate and reweight at document edges
// instead of padding, which would dampen boundary segments artificially.
type Modulator struct {
	window       int
	defaultBlend float64
	blends       map[string]float64
	offsets      []float64
	signed       func(string) bool
}

// NewModulator builds a modulator from configuration. Neighbor weights decay
// triangularly with distance unless an explicit center-first weight list is
// configured. The signed callback tells the modulator which clamp range a
// dimension uses.
func NewModulator(cfg config.ModulationConfig, signed func(string) bool) *Modulator {
	offsets := make([]float64, cfg.WindowSize+1)
	if len(cfg.WindowWeights) == cfg.WindowSize+1 {
		copy(offsets, cfg.WindowWeights)
	} else {
		for d := range offsets {
			offsets[d] = float64(cfg.WindowSize + 1 - d)
		}
	}
	blends := make(map[string]float64, len(cfg.BlendWeights))
	for dim, b := range cfg.BlendWeights {
		blends[dim] = b
	}
	if signed == nil {
		signed = func(string) bool { return false }
	}
	return &Modulator{
		window:       cfg.WindowSize,
		defaultBlend: cfg.DefaultBlend,
		blends:       blends,
		offsets:      offsets,
		signed:       signed,
	}
}

// Modulate derives the context-adjusted sequence from the normalized one.
// The input is read only; identical input and configuration always produce
// identical output. A constant sequence passes through unchanged.
func (m *Modulator) Modulate(vectors []semantic.Features) []semantic.Features {
	out := make([]semantic.Features, len(vectors))
	for i, vec := range vectors {
		mod := make(semantic.Features, len(vec))
		for dim, v := range vec {
			blend := m.blendFor(dim)
			if blend == 0 || m.window == 0 {
				mod[dim] = v
				continue
			}
			avg := m.windowAverage(vectors, i, dim, v)
			mixed := v + blend*(avg-v)
			mod[dim] = clampRange(mixed, m.signed(dim))
		}
		out[i] = mod
	}
	return out
}

func (m *Modulator) blendFor(dim string) float64 {
	if b, ok := m.blends[dim]; ok {
		return b
	}
	return m.defaultBlend
}

// windowAverage computes the weighted mean of one dimension across the
// window centered on i, counting only segments that carry the dimension.
// Accumulating deviations from the center value keeps a constant window
// exactly constant instead of drifting by rounding.
func (m *Modulator) windowAverage(vectors []semantic.Features, i int, dim string, self float64) float64 {
	lo := i - m.window
	if lo < 0 {
		lo = 0
	}
	hi := i + m.window
	if hi > len(vectors)-1 {
		hi = len(vectors) - 1
	}
	var sum, weight float64
	for j := lo; j <= hi; j++ {
		v, ok := vectors[j][dim]
		if !ok {
			continue
		}
		d := j - i
		if d < 0 {
			d = -d
		}
		w := m.offsets[d]
		sum += w * (v - self)
		weight += w
	}
	if weight == 0 {
		return self
	}
	return self + sum/weight
}

func clampRange(v float64, signed bool) float64 {
	lo := 0.0
	if signed {
		lo = -1.0
	}
	if v < lo {
		return lo
	}
	if v > 1 {
		return 1
	}
	return v
}
