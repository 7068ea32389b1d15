package vector

import "math"

// L2Distance returns the Euclidean distance between two vectors of equal length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// RelevanceFromDistance converts the L2 distance between two unit vectors into cosine
// similarity (1 - d²/2), clamped to [0, 1].
func RelevanceFromDistance(d float64) float64 {
	s := 1 - d*d/2
	return math.Max(0, math.Min(1, s))
}
