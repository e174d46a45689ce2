// Package fusion combines per-field embeddings of a record into one vector.
package fusion

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// Default weights: the description carries more meaning than the name.
const (
	DefaultDescriptionWeight = 3.0
	DefaultNameWeight        = 1.0
)

// DefaultWeights returns the weight of each field, keyed by field.
func DefaultWeights() map[domain.TextField]float64 {
	return map[domain.TextField]float64{
		domain.FieldDescription: DefaultDescriptionWeight,
		domain.FieldName:        DefaultNameWeight,
	}
}

// Fuse returns the L2-normalized weighted average of the non-none vectors.
// All-none input yields none.
func Fuse(vectors []domain.Embedding, weights []float64) (domain.Embedding, error) {
	avg, err := WeightedAverage(vectors, weights)
	if err != nil || avg.IsNone() {
		return nil, err
	}
	return Normalize(avg)
}

// WeightedAverage is the per-dimension weighted mean of the non-none vectors.
// None entries and their weights are left out, so a single real input is
// returned as is.
func WeightedAverage(vectors []domain.Embedding, weights []float64) (domain.Embedding, error) {
	if len(vectors) != len(weights) {
		return nil, fmt.Errorf("%d vectors for %d weights: %w",
			len(vectors), len(weights), domain.ErrDimensionMismatch)
	}

	dims := -1
	var total float64
	var sum []float64
	for i, v := range vectors {
		if v.IsNone() {
			continue
		}
		w := weights[i]
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %d is %v, must be positive", i, w)
		}
		if dims == -1 {
			dims = len(v)
			sum = make([]float64, dims)
		} else if len(v) != dims {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d: %w",
				i, len(v), dims, domain.ErrDimensionMismatch)
		}
		for d, x := range v {
			sum[d] += w * float64(x)
		}
		total += w
	}

	if dims == -1 {
		return nil, nil
	}

	out := make(domain.Embedding, dims)
	for d := range sum {
		out[d] = float32(sum[d] / total)
	}
	return out, nil
}

// Normalize scales v to unit L2 norm.
func Normalize(v domain.Embedding) (domain.Embedding, error) {
	if v.IsNone() {
		return nil, nil
	}
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sq)
	if norm == 0 || math.IsNaN(norm) {
		return nil, &domain.DegenerateVectorError{Dimensions: len(v)}
	}

	out := make(domain.Embedding, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}
