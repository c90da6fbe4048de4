package index

import (
	"fmt"
	"math"
	"sort"

	"qbank/internal/domain"
)

// DefaultMaxNeighbors is the neighbor cap used when none is configured.
const DefaultMaxNeighbors = 50

// Neighbor is one query hit: a corpus position and its cosine distance.
type Neighbor struct {
	Position int
	Distance float64
}

// BruteForce is an exhaustive cosine-distance index over an N x D matrix.
// Every query scores all rows, which keeps results exact and is fast enough
// for question banks up to tens of thousands of rows; beyond that an
// approximate index is needed. The matrix is shared, not copied, and must
// not be modified after Build.
type BruteForce struct {
	matrix       [][]float32
	norms        []float64
	dim          int
	maxNeighbors int
}

// Build creates an index over matrix with M = min(maxNeighbors, N).
func Build(matrix [][]float32, maxNeighbors int) (*BruteForce, error) {
	if len(matrix) == 0 {
		return nil, fmt.Errorf("%w: cannot index an empty matrix", domain.ErrInvalidArgument)
	}
	if maxNeighbors <= 0 {
		maxNeighbors = DefaultMaxNeighbors
	}

	dim := len(matrix[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vectors", domain.ErrInvalidArgument)
	}
	norms := make([]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, want %d", domain.ErrInvalidArgument, i, len(row), dim)
		}
		norms[i] = magnitude(row)
	}

	return &BruteForce{
		matrix:       matrix,
		norms:        norms,
		dim:          dim,
		maxNeighbors: min(maxNeighbors, len(matrix)),
	}, nil
}

// Rows returns N.
func (b *BruteForce) Rows() int {
	return len(b.matrix)
}

// Dim returns D.
func (b *BruteForce) Dim() int {
	return b.dim
}

// MaxNeighbors returns the build-time cap M.
func (b *BruteForce) MaxNeighbors() int {
	return b.maxNeighbors
}

// Matrix returns the indexed rows.
func (b *BruteForce) Matrix() [][]float32 {
	return b.matrix
}

// Query returns the k rows closest to vec by cosine distance, ascending,
// ties broken by ascending position. k must be in [1, M].
func (b *BruteForce) Query(vec []float32, k int) ([]Neighbor, error) {
	if k < 1 || k > b.maxNeighbors {
		return nil, fmt.Errorf("%w: k=%d outside [1, %d]", domain.ErrInvalidArgument, k, b.maxNeighbors)
	}
	if len(vec) != b.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", domain.ErrInvalidArgument, len(vec), b.dim)
	}

	qNorm := magnitude(vec)
	all := make([]Neighbor, len(b.matrix))
	for i, row := range b.matrix {
		all[i] = Neighbor{Position: i, Distance: cosineDistance(vec, qNorm, row, b.norms[i])}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].Position < all[j].Position
	})

	return all[:k], nil
}

// cosineDistance is 1 - cos(a, b) clipped to [0, 2]. A zero vector has
// similarity 0 with everything.
func cosineDistance(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 1
	}
	d := 1 - dot(a, b)/(aNorm*bNorm)
	if math.IsNaN(d) {
		return 1
	}
	return math.Min(math.Max(d, 0), 2)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
