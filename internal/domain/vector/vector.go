// Package vector implements the dense-vector math shared by the discovery engine
// and the index backends that emulate recommendation locally.
package vector

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// Mean returns the componentwise mean of vs. All vectors must share one dimension.
func Mean(vs [][]float32) ([]float32, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("mean of zero vectors")
	}
	dim := len(vs[0])
	sum := make([]float64, dim)
	for i, v := range vs {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dims, want %d: %w", i, len(v), dim, domain.ErrVectorDimMismatch)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vs))
	for j, s := range sum {
		out[j] = float32(s / n)
	}
	return out, nil
}

// Negate returns -v as a new vector.
func Negate(v []float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 if either has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Uniform draws a vector with components uniform in [-1, 1). rnd must return values in [0, 1).
func Uniform(dim int, rnd func() float64) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = float32(2*rnd() - 1)
	}
	return out
}

// AverageQuery builds the synthetic query of the average-vector strategy:
// 2·mean(positive) − mean(negative), or mean(positive) when there are no negatives.
func AverageQuery(positive, negative [][]float32) ([]float32, error) {
	if len(positive) == 0 {
		return nil, fmt.Errorf("average vector needs at least one positive example: %w", domain.ErrInvalidQuery)
	}
	pos, err := Mean(positive)
	if err != nil {
		return nil, fmt.Errorf("positive mean: %w", err)
	}
	if len(negative) == 0 {
		return pos, nil
	}
	neg, err := Mean(negative)
	if err != nil {
		return nil, fmt.Errorf("negative mean: %w", err)
	}
	if len(neg) != len(pos) {
		return nil, fmt.Errorf("negative mean has %d dims, want %d: %w", len(neg), len(pos), domain.ErrVectorDimMismatch)
	}
	out := make([]float32, len(pos))
	for i := range pos {
		out[i] = 2*pos[i] - neg[i]
	}
	return out, nil
}

// BestScore rates a candidate against every example individually.
// Without positives the score is the negated best negative similarity. Otherwise
// the best positive similarity wins when it beats the best negative; if not, the
// candidate is pushed below all positive matches with −bestNeg².
func BestScore(candidate []float32, positive, negative [][]float32) float64 {
	bestNeg := math.Inf(-1)
	for _, n := range negative {
		bestNeg = math.Max(bestNeg, Cosine(candidate, n))
	}
	if len(positive) == 0 {
		if len(negative) == 0 {
			return 0
		}
		return -bestNeg
	}
	bestPos := math.Inf(-1)
	for _, p := range positive {
		bestPos = math.Max(bestPos, Cosine(candidate, p))
	}
	if len(negative) == 0 || bestPos > bestNeg {
		return bestPos
	}
	return -(bestNeg * bestNeg)
}
