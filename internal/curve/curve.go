// Package curve provides the monotone transfer curves used by the mapping
// sub-functions. Builtin shapes cover the common cases; custom shapes can be
// loaded from WASM modules exporting a unary f64 function.
package curve

import (
	"fmt"
	"math"
)

// Shape is a transfer curve on the unit interval. Every shape returned by
// Resolve is monotone non-decreasing with Shape(0)=0 and Shape(1)=1; inputs
// outside [0,1] are clamped.
type Shape func(x float64) float64

// Spec selects a shape by name. Name "wasm" loads Module and calls Entrypoint.
type Spec struct {
	Name       string `yaml:"name" json:"name"`
	Module     string `yaml:"module,omitempty" json:"module,omitempty"`
	Entrypoint string `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`
}

const (
	logKnee     = 9.0 // log curve: log1p(9x)/log1p(9), decade-style fast rise
	expKnee     = 2.0
	sigmoidGain = 8.0
)

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

var builtins = map[string]Shape{
	"linear": func(x float64) float64 { return clamp01(x) },
	"sqrt":   func(x float64) float64 { return math.Sqrt(clamp01(x)) },
	"log": func(x float64) float64 {
		return math.Log1p(logKnee*clamp01(x)) / math.Log1p(logKnee)
	},
	"exp": func(x float64) float64 {
		return (math.Exp(expKnee*clamp01(x)) - 1) / (math.Exp(expKnee) - 1)
	},
	"sigmoid": func(x float64) float64 {
		x = clamp01(x)
		lo := logistic(-sigmoidGain / 2)
		hi := logistic(sigmoidGain / 2)
		return (logistic(sigmoidGain*(x-0.5)) - lo) / (hi - lo)
	},
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Resolve returns the shape selected by spec. An empty name means linear.
// WASM shapes are sampled and validated at load time; see wasm.go.
func Resolve(spec Spec) (Shape, error) {
	name := spec.Name
	if name == "" {
		name = "linear"
	}
	if name == "wasm" {
		return loadWASMShape(spec)
	}
	shape, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown curve %q", name)
	}
	return shape, nil
}

// Names lists the builtin curve names.
func Names() []string {
	return []string{"linear", "sqrt", "log", "exp", "sigmoid"}
}

// Signed extends a unit shape to [-1,1] by odd symmetry, so Signed(s)(0)=0
// and the sign of the drive is preserved.
func Signed(s Shape) Shape {
	return func(x float64) float64 {
		if x < 0 {
			return -s(-x)
		}
		return s(x)
	}
}
