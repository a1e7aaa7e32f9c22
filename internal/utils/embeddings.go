package utils

import (
	"fmt"
	"math"
)

// Magnitude calculates the L2 norm of a vector.
func Magnitude(vec []float32) float64 {
	var sumOfSquares float64
	for _, val := range vec {
		sumOfSquares += float64(val) * float64(val)
	}
	return math.Sqrt(sumOfSquares)
}

// Normalize scales vec in place to unit length. A zero vector is left untouched
// and reported as an error, since it has no direction to preserve.
func Normalize(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("vector cannot be empty")
	}
	mag := Magnitude(vec)
	if mag == 0 {
		return fmt.Errorf("cannot normalize a zero vector")
	}
	for i, val := range vec {
		vec[i] = float32(float64(val) / mag)
	}
	return nil
}

// SquaredL2Distance returns the squared Euclidean distance between two vectors
// of equal dimension.
func SquaredL2Distance(vec1, vec2 []float32) (float64, error) {
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("vectors must have the same dimension (%d != %d)", len(vec1), len(vec2))
	}
	var sum float64
	for i := range vec1 {
		d := float64(vec1[i]) - float64(vec2[i])
		sum += d * d
	}
	return sum, nil
}
