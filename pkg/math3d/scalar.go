package math3d

import "math"

// Epsilon floors lengths, cosines and denominators before division.
const Epsilon = 1e-9

// RayEpsilon offsets secondary ray origins off the surface they leave.
const RayEpsilon = 1e-4

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	return Clamp(x, 0, 1)
}

// SafeDiv returns a/b with |b| floored to Epsilon.
func SafeDiv(a, b float64) float64 {
	if math.Abs(b) < Epsilon {
		b = math.Copysign(Epsilon, b)
	}
	return a / b
}
