package protocol

import "math"

// Round4 rounds v to 4 decimal places, the precision used for every float
// sent over the wire.
func Round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*10000) / 10000
}
