package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var indexMagic = [4]byte{'Q', 'B', 'N', 'N'}

const codecVersion = 1

// ErrMismatch is returned by Attach when the serialized structure does not
// describe the supplied matrix.
var ErrMismatch = errors.New("index: structure does not match matrix")

// Header is the serialized description of an index.
type Header struct {
	Rows         int
	Dim          int
	MaxNeighbors int
}

// MarshalBinary stores magic, version(uint32), rows(uint32), dim(uint32),
// maxNeighbors(uint32), then one float64 norm per row. Vectors live with
// the corpus and are reattached by Attach.
func (b *BruteForce) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 20+8*len(b.norms))
	out = append(out, indexMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, codecVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.matrix)))
	out = binary.LittleEndian.AppendUint32(out, uint32(b.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(b.maxNeighbors))
	for _, n := range b.norms {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(n))
	}
	return out, nil
}

// Serialized is a decoded index blob awaiting its matrix.
type Serialized struct {
	Header
	norms []float64
}

// Unmarshal decodes a blob written by MarshalBinary.
func Unmarshal(data []byte) (*Serialized, error) {
	if len(data) < 20 {
		return nil, errors.New("index: truncated header")
	}
	if [4]byte(data[0:4]) != indexMagic {
		return nil, errors.New("index: bad magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != codecVersion {
		return nil, fmt.Errorf("index: unsupported version %d", v)
	}
	s := &Serialized{Header: Header{
		Rows:         int(binary.LittleEndian.Uint32(data[8:12])),
		Dim:          int(binary.LittleEndian.Uint32(data[12:16])),
		MaxNeighbors: int(binary.LittleEndian.Uint32(data[16:20])),
	}}
	body := data[20:]
	if len(body) != 8*s.Rows {
		return nil, fmt.Errorf("index: expected %d norms, got %d bytes", s.Rows, len(body))
	}
	s.norms = make([]float64, s.Rows)
	for i := range s.norms {
		s.norms[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[8*i:]))
	}
	return s, nil
}

// Attach rebuilds the index over matrix and verifies that shape, neighbor cap
// and every row norm agree with the serialized structure.
func (s *Serialized) Attach(matrix [][]float32) (*BruteForce, error) {
	if len(matrix) != s.Rows {
		return nil, fmt.Errorf("%w: %d rows, matrix has %d", ErrMismatch, s.Rows, len(matrix))
	}
	if s.Rows == 0 {
		return nil, fmt.Errorf("%w: empty index", ErrMismatch)
	}
	if s.MaxNeighbors < 1 || s.MaxNeighbors > s.Rows {
		return nil, fmt.Errorf("%w: neighbor cap %d for %d rows", ErrMismatch, s.MaxNeighbors, s.Rows)
	}

	idx, err := Build(matrix, s.MaxNeighbors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	if idx.dim != s.Dim {
		return nil, fmt.Errorf("%w: dimension %d, matrix has %d", ErrMismatch, s.Dim, idx.dim)
	}
	for i, n := range idx.norms {
		if n != s.norms[i] {
			return nil, fmt.Errorf("%w: row %d differs", ErrMismatch, i)
		}
	}
	return idx, nil
}
