package curve

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// wasmSamples is the resolution of the interpolation table a WASM shape is
// flattened into. Sampling at load keeps the returned Shape a pure function:
// the module runs once, traps surface as load errors, and the hot path never
// re-enters the VM.
const wasmSamples = 256

func loadWASMShape(spec Spec) (Shape, error) {
	if spec.Module == "" {
		return nil, fmt.Errorf("wasm curve requires a module path")
	}
	entry := spec.Entrypoint
	if entry == "" {
		entry = "shape"
	}

	wasmBytes, err := os.ReadFile(spec.Module)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	module, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("curve"))
	if err != nil {
		return nil, fmt.Errorf("instantiate wasm module: %w", err)
	}
	fn := module.ExportedFunction(entry)
	if fn == nil {
		return nil, fmt.Errorf("entrypoint %q not exported by %s", entry, spec.Module)
	}

	table := make([]float64, wasmSamples+1)
	for i := range table {
		x := float64(i) / float64(wasmSamples)
		results, err := fn.Call(ctx, api.EncodeF64(x))
		if err != nil {
			return nil, fmt.Errorf("call %s(%g): %w", entry, x, err)
		}
		if len(results) != 1 {
			return nil, fmt.Errorf("entrypoint %q must return exactly one f64", entry)
		}
		table[i] = api.DecodeF64(results[0])
	}
	if err := validateTable(table); err != nil {
		return nil, fmt.Errorf("wasm curve %s: %w", spec.Module, err)
	}
	return tableShape(table), nil
}

// validateTable enforces the Shape contract on sampled values: endpoints at
// 0 and 1, everything in range, monotone non-decreasing.
func validateTable(table []float64) error {
	const tol = 1e-6
	if d := table[0]; d < -tol || d > tol {
		return fmt.Errorf("shape(0) = %g, want 0", d)
	}
	if d := table[len(table)-1] - 1; d < -tol || d > tol {
		return fmt.Errorf("shape(1) = %g, want 1", table[len(table)-1])
	}
	for i, v := range table {
		if v < -tol || v > 1+tol {
			return fmt.Errorf("sample %d out of range: %g", i, v)
		}
		if i > 0 && v < table[i-1]-tol {
			return fmt.Errorf("not monotone at sample %d: %g < %g", i, v, table[i-1])
		}
	}
	return nil
}

func tableShape(table []float64) Shape {
	n := len(table) - 1
	return func(x float64) float64 {
		x = clamp01(x)
		pos := x * float64(n)
		i := int(pos)
		if i >= n {
			return clamp01(table[n])
		}
		frac := pos - float64(i)
		return clamp01(table[i] + (table[i+1]-table[i])*frac)
	}
}
