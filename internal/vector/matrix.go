package vector

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
)

// Matrix is a dense, symmetric N×N similarity matrix stored row-major.
// It is never modified after construction.
type Matrix struct {
	n    int
	data []float32
}

// NewMatrix wraps data as an n×n matrix. len(data) must equal n*n.
func NewMatrix(n int, data []float32) (*Matrix, error) {
	if n < 0 {
		return nil, fmt.Errorf("matrix size must not be negative: %d", n)
	}
	if len(data) != n*n {
		return nil, fmt.Errorf("matrix data length mismatch: got %d, expected %d", len(data), n*n)
	}
	return &Matrix{n: n, data: data}, nil
}

// Size returns N.
func (m *Matrix) Size() int {
	return m.n
}

// At returns the similarity between items i and j.
func (m *Matrix) At(i, j int) float32 {
	return m.data[i*m.n+j]
}

// Row returns row i. The returned slice aliases the matrix and must not be modified.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.n : (i+1)*m.n]
}

// Data returns the backing row-major slice. It must not be modified.
func (m *Matrix) Data() []float32 {
	return m.data
}

// BuildMatrix computes pairwise cosine similarity of L2-normalized vectors.
// The upper triangle is computed and mirrored, so At(i, j) == At(j, i) exactly.
// The diagonal is 1 for non-zero vectors and 0 for zero vectors.
func BuildMatrix(vectors []Sparse) *Matrix {
	return BuildMatrixWorkers(vectors, runtime.GOMAXPROCS(0))
}

// BuildMatrixWorkers is BuildMatrix with an explicit number of worker goroutines.
func BuildMatrixWorkers(vectors []Sparse, workers int) *Matrix {
	n := len(vectors)
	data := make([]float32, n*n)
	if workers < 1 {
		workers = 1
	}
	zero := make([]bool, n)
	for i, v := range vectors {
		zero[i] = v.IsZero()
	}

	// Rows are handed out one at a time; row i owns cells (i, j) and (j, i) for j >= i.
	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				if zero[i] {
					continue
				}
				data[i*n+i] = 1
				for j := i + 1; j < n; j++ {
					if zero[j] {
						continue
					}
					s := clamp(Dot(vectors[i], vectors[j]))
					data[i*n+j] = s
					data[j*n+i] = s
				}
			}
		}()
	}
	wg.Wait()
	return &Matrix{n: n, data: data}
}

func clamp(v float64) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}

// Neighbor is one scored entry of a matrix row.
type Neighbor struct {
	Index int
	Score float32
}

// Nearest returns up to k entries of row i ordered by descending score, ties broken by
// ascending index. Item i itself is never included. k is clamped to N-1.
func (m *Matrix) Nearest(i, k int) []Neighbor {
	if k <= 0 || m.n <= 1 {
		return []Neighbor{}
	}
	row := m.Row(i)
	scores := make([]Neighbor, 0, m.n-1)
	for j, s := range row {
		if j == i {
			continue
		}
		scores = append(scores, Neighbor{Index: j, Score: s})
	}
	slices.SortFunc(scores, func(a, b Neighbor) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}
