package sonify

import (
	"math"
	"testing"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

func TestModulateConstantSignalUnchanged(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:   2,
		DefaultBlend: 0.5,
	}, nil)
	in := make([]semantic.Features, 5)
	for i := range in {
		in[i] = semantic.Features{"sentiment": 0.7}
	}
	out := m.Modulate(in)
	for i := range out {
		if got := out[i]["sentiment"]; got != 0.7 {
			t.Fatalf("segment %d: constant signal changed to %v", i, got)
		}
	}
}

func TestModulateSingleSegmentLargeWindow(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:   3,
		DefaultBlend: 0.8,
	}, nil)
	out := m.Modulate([]semantic.Features{{"emphasis": 0.4}})
	if len(out) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(out))
	}
	if got := out[0]["emphasis"]; got != 0.4 {
		t.Fatalf("lone segment must pass through, got %v", got)
	}
}

func TestModulateEdgeTruncationReweights(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:   1,
		DefaultBlend: 1.0,
	}, nil)
	out := m.Modulate([]semantic.Features{
		{"emphasis": 0},
		{"emphasis": 0.5},
		{"emphasis": 1.0},
	})
	// Triangular weights: center 2, neighbor 1. The last segment averages
	// only its real neighbors; zero padding would drag it down to 0.625.
	want := (1*0.5 + 2*1.0) / 3
	if got := out[2]["emphasis"]; math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected reweighted edge %v, got %v", want, got)
	}
	wantFirst := (2*0 + 1*0.5) / 3
	if got := out[0]["emphasis"]; math.Abs(got-wantFirst) > 1e-12 {
		t.Fatalf("expected reweighted edge %v, got %v", wantFirst, got)
	}
}

func TestModulateZeroBlendIdentity(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:   2,
		DefaultBlend: 0,
	}, nil)
	in := []semantic.Features{
		{"emphasis": 0.1},
		{"emphasis": 0.9},
	}
	out := m.Modulate(in)
	for i := range in {
		if out[i]["emphasis"] != in[i]["emphasis"] {
			t.Fatalf("segment %d changed with zero blend", i)
		}
	}
}

func TestModulatePerDimensionBlend(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:   1,
		DefaultBlend: 1.0,
		BlendWeights: map[string]float64{"emphasis": 0},
	}, nil)
	out := m.Modulate([]semantic.Features{
		{"emphasis": 0.0, "novelty": 0.0},
		{"emphasis": 1.0, "novelty": 1.0},
	})
	if got := out[1]["emphasis"]; got != 1.0 {
		t.Fatalf("emphasis blend 0 must stay sharp, got %v", got)
	}
	if got := out[1]["novelty"]; got >= 1.0 {
		t.Fatalf("novelty must smooth toward neighbor, got %v", got)
	}
}

func TestModulateExplicitWindowWeights(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:    1,
		DefaultBlend:  1.0,
		WindowWeights: []float64{1, 1},
	}, nil)
	out := m.Modulate([]semantic.Features{
		{"emphasis": 0.2},
		{"emphasis": 0.8},
	})
	for i := range out {
		if got := out[i]["emphasis"]; math.Abs(got-0.5) > 1e-12 {
			t.Fatalf("uniform weights must average to 0.5, segment %d got %v", i, got)
		}
	}
}

func TestModulateMissingNeighborDimension(t *testing.T) {
	m := NewModulator(config.ModulationConfig{
		WindowSize:   1,
		DefaultBlend: 1.0,
	}, nil)
	out := m.Modulate([]semantic.Features{
		{"emphasis": 0.3},
		{"emphasis": 0.3, "novelty": 0.6},
		{"emphasis": 0.3},
	})
	if got := out[1]["novelty"]; got != 0.6 {
		t.Fatalf("dimension without neighbors must pass through, got %v", got)
	}
}

func TestModulateClampsSignedRange(t *testing.T) {
	signed := func(dim string) bool { return dim == "sentiment" }
	m := NewModulator(config.ModulationConfig{
		WindowSize:   1,
		DefaultBlend: 0.5,
	}, signed)
	out := m.Modulate([]semantic.Features{
		{"sentiment": -1},
		{"sentiment": -1},
	})
	for i := range out {
		if got := out[i]["sentiment"]; got < -1 || got > 1 {
			t.Fatalf("segment %d sentiment %v escaped [-1,1]", i, got)
		}
		if got := out[i]["sentiment"]; got != -1 {
			t.Fatalf("constant -1 must stay -1, got %v", got)
		}
	}
}
