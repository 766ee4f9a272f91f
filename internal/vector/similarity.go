// Package vector provides sparse weight vectors and the dense pairwise similarity matrix built from them.
package vector

import "math"

// Sparse is a sparse weight vector. Indices are strictly increasing.
type Sparse struct {
	Indices []int32   `msgpack:"i"`
	Values  []float64 `msgpack:"v"`
}

// Len returns the number of non-zero entries.
func (s Sparse) Len() int {
	return len(s.Indices)
}

// IsZero reports whether the vector has no non-zero weight.
func (s Sparse) IsZero() bool {
	for _, v := range s.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Dot returns the inner product of two sparse vectors (for normalized vectors equals cosine similarity).
func Dot(a, b Sparse) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			dot += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(s Sparse) float64 {
	var sum float64
	for _, v := range s.Values {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// NormalizeL2 scales s in place to unit L2 norm. A zero vector is left unchanged.
func NormalizeL2(s Sparse) {
	norm := L2Norm(s)
	if norm == 0 {
		return
	}
	for i := range s.Values {
		s.Values[i] /= norm
	}
}
