package utils

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	if err := Normalize(vec); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if math.Abs(Magnitude(vec)-1) > 1e-6 {
		t.Fatalf("expected unit length, got %f", Magnitude(vec))
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalized vector %v", vec)
	}
}

func TestNormalizeRejectsZeroAndEmpty(t *testing.T) {
	if err := Normalize([]float32{0, 0, 0}); err == nil {
		t.Fatalf("expected error for zero vector")
	}
	if err := Normalize(nil); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}

func TestSquaredL2Distance(t *testing.T) {
	d, err := SquaredL2Distance([]float32{1, 2, 3}, []float32{1, 0, 1})
	if err != nil {
		t.Fatalf("SquaredL2Distance failed: %v", err)
	}
	if d != 8 {
		t.Fatalf("expected 8, got %f", d)
	}
	if _, err := SquaredL2Distance([]float32{1}, []float32{1, 2}); err == nil {
		t.Fatalf("expected dimension error")
	}
}
