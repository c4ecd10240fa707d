// Package analytics turns attendance records into dashboard datasets and
// insight cards. Every function is pure: the same records always produce the
// same output, independent of wall-clock time.
package analytics

import "math"

// Rate returns round(num/den*100) clamped to [0,100]. A non-positive
// denominator yields 0.
func Rate(num, den int) int {
	if den <= 0 {
		return 0
	}
	r := int(math.Round(float64(num) / float64(den) * 100))
	return clamp(r, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
