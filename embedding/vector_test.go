package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float32{1.0, 0.0, 0.0},
			expected: []float32{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float32{3.0, 4.0},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float32{-1.0, 1.0},
			expected: []float32{-1.0 / float32(math.Sqrt(2)), 1.0 / float32(math.Sqrt(2))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			require.Equal(t, len(tt.expected), len(result), "vector length mismatch")

			var magnitude float64
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
				magnitude += float64(result[i]) * float64(result[i])
			}
			assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6, "magnitude should be 1.0")
		})
	}
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := []float32{3, 4}
	NormalizeVector(input)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	result := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, result)
}

func TestNormalizeVector_EmptyVector(t *testing.T) {
	assert.Empty(t, NormalizeVector([]float32{}))
}

func TestValidateVectors(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	assert.NoError(t, validateVectors([][]float32{{1, 0}, {0, 1}}, 0))
	assert.NoError(t, validateVectors([][]float32{{1, 0}}, 2))
	assert.ErrorIs(t, validateVectors([][]float32{{1, 0}, {1}}, 0), ErrBadVector)
	assert.ErrorIs(t, validateVectors([][]float32{{1, 0}}, 3), ErrBadVector)
	assert.ErrorIs(t, validateVectors([][]float32{{}}, 0), ErrBadVector)
	assert.ErrorIs(t, validateVectors([][]float32{{0, 0}}, 0), ErrBadVector)
	assert.ErrorIs(t, validateVectors([][]float32{{nan, 1}}, 0), ErrBadVector)
	assert.ErrorIs(t, validateVectors([][]float32{{inf, 1}}, 0), ErrBadVector)
}
