package main

import "math"

// Equal-power fade law, the curve audio engineers reach for when a linear
// ramp sounds too abrupt. Rises fast from silence and flattens toward full
// scale. Build like the smoothstep example.

//export shape
func shape(x float64) float64 {
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return math.Sin(x * math.Pi / 2)
}

func main() {}
