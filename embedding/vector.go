package embedding

import (
	"fmt"
	"math"
)

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// validateVectors checks that every vector has dim finite components and is
// not all zeros. dim <= 0 takes the dimension from the first vector.
func validateVectors(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if dim <= 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d components, want %d", ErrBadVector, i, len(v), dim)
		}
		zero := true
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return fmt.Errorf("%w: vector %d has a non-finite component", ErrBadVector, i)
			}
			if x != 0 {
				zero = false
			}
		}
		if zero {
			return fmt.Errorf("%w: vector %d is all zeros", ErrBadVector, i)
		}
	}
	return nil
}
