package sim

import "math"

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// dueEpsilon is the relative tolerance used when comparing simulated times
// that were derived from step counts.
const dueEpsilon = 64 * 0x1p-52

// timeTolerance returns the absolute tolerance for comparing times of the
// given magnitudes.
func timeTolerance(magnitudes ...VTimeInSec) VTimeInSec {
	m := 0.0
	for _, v := range magnitudes {
		m = math.Max(m, math.Abs(float64(v)))
	}

	return VTimeInSec(dueEpsilon * m)
}

// SameTime tells if two times are equal within the rounding that step-based
// time derivation produces.
func SameTime(a, b VTimeInSec) bool {
	if a == b {
		return true
	}

	return math.Abs(float64(a-b)) <= float64(timeTolerance(a, b))
}
