package main

// Example transfer curve for the sonifier's wasm loader. Build with
// `tinygo build -o smoothstep.wasm -target=wasi ./src` and point a mapping's
// curve at the output:
//
//	curve:
//	  name: wasm
//	  module: curves/smoothstep.wasm
//
// The host samples the entrypoint across [0,1] at load, so the export must be
// monotone with shape(0)=0 and shape(1)=1.

//export shape
func shape(x float64) float64 {
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return x * x * (3 - 2*x)
}

func main() {}
