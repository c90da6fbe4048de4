package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qbank/internal/domain"
)

func testMatrix() [][]float32 {
	return [][]float32{
		{1, 0, 0},  // 0
		{0, 1, 0},  // 1
		{1, 1, 0},  // 2
		{-1, 0, 0}, // 3
		{2, 0, 0},  // 4, same direction as 0
		{0, 0, 0},  // 5, zero vector
	}
}

func TestBuild_NeighborCap(t *testing.T) {
	idx, err := Build(testMatrix(), 50)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.MaxNeighbors())
	assert.Equal(t, 6, idx.Rows())
	assert.Equal(t, 3, idx.Dim())

	idx, err = Build(testMatrix(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.MaxNeighbors())

	idx, err = Build(testMatrix(), 0)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.MaxNeighbors())
}

func TestBuild_Invalid(t *testing.T) {
	_, err := Build(nil, 50)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = Build([][]float32{{1, 2}, {1}}, 50)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestQuery_OrderAndTies(t *testing.T) {
	idx, err := Build(testMatrix(), 50)
	require.NoError(t, err)

	hits, err := idx.Query([]float32{1, 0, 0}, 6)
	require.NoError(t, err)
	require.Len(t, hits, 6)

	// rows 0 and 4 tie at distance 0; position breaks the tie
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 4, hits[1].Position)
	assert.InDelta(t, 0, hits[0].Distance, 1e-12)
	assert.Equal(t, 2, hits[2].Position)
	assert.InDelta(t, 1-1/math.Sqrt2, hits[2].Distance, 1e-9)
	// rows 1 and 5 tie at distance 1
	assert.Equal(t, 1, hits[3].Position)
	assert.Equal(t, 5, hits[4].Position)
	assert.Equal(t, 3, hits[5].Position)
	assert.InDelta(t, 2, hits[5].Distance, 1e-12)

	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestQuery_ReturnsExactlyK(t *testing.T) {
	idx, err := Build(testMatrix(), 50)
	require.NoError(t, err)
	for k := 1; k <= idx.MaxNeighbors(); k++ {
		hits, err := idx.Query([]float32{0, 1, 0}, k)
		require.NoError(t, err)
		assert.Len(t, hits, k)
	}
}

func TestQuery_KOutOfRange(t *testing.T) {
	idx, err := Build(testMatrix(), 3)
	require.NoError(t, err)

	_, err = idx.Query([]float32{1, 0, 0}, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = idx.Query([]float32{1, 0, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = idx.Query([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestQuery_ZeroQuery(t *testing.T) {
	idx, err := Build(testMatrix(), 50)
	require.NoError(t, err)

	hits, err := idx.Query([]float32{0, 0, 0}, 6)
	require.NoError(t, err)
	for i, h := range hits {
		assert.Equal(t, 1.0, h.Distance)
		assert.Equal(t, i, h.Position)
	}
}

func TestMarshalAttach(t *testing.T) {
	matrix := testMatrix()
	idx, err := Build(matrix, 4)
	require.NoError(t, err)

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	s, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, Header{Rows: 6, Dim: 3, MaxNeighbors: 4}, s.Header)

	restored, err := s.Attach(matrix)
	require.NoError(t, err)

	q := []float32{0.3, 0.7, 0.1}
	want, err := idx.Query(q, 4)
	require.NoError(t, err)
	got, err := restored.Query(q, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAttach_Mismatch(t *testing.T) {
	idx, err := Build(testMatrix(), 50)
	require.NoError(t, err)
	data, err := idx.MarshalBinary()
	require.NoError(t, err)
	s, err := Unmarshal(data)
	require.NoError(t, err)

	_, err = s.Attach(testMatrix()[:5])
	assert.ErrorIs(t, err, ErrMismatch)

	changed := testMatrix()
	changed[2] = []float32{3, 3, 3}
	_, err = s.Attach(changed)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestUnmarshal_Corrupt(t *testing.T) {
	_, err := Unmarshal([]byte("short"))
	assert.Error(t, err)

	idx, err := Build(testMatrix(), 50)
	require.NoError(t, err)
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	_, err = Unmarshal(data[:len(data)-1])
	assert.Error(t, err)

	bad := append([]byte("XXXX"), data[4:]...)
	_, err = Unmarshal(bad)
	assert.Error(t, err)
}
