package ssg

import (
	"bufio"
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"slices"

	"github.com/patrikhermansson/ssg/core"
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/floats"
)

// HashFilter is a CandidateFilter that ranks the neighbors of an expanded node by
// the Hamming distance between sign random projection codes and keeps the closest
// ceil(degree*Ratio). Projection planes are gaussian and orthogonalized, up to the
// dataset dimension.
type HashFilter struct {
	// Ratio is the share of each neighbor list that gets scored, in (0, 1].
	Ratio float64

	bits   int
	dim    int
	words  int
	planes []float32 // bits rows of dim values
	codes  []uint64  // words per node
}

// NewHashFilter draws bits projection planes and hashes every row of data.
func NewHashFilter(ctx context.Context, data *core.Matrix, bitCount int, ratio float64, seed int64, workers int) (*HashFilter, error) {
	if bitCount <= 0 {
		return nil, fmt.Errorf("%w: hash bits must be positive, got %d", ErrInvalidConfig, bitCount)
	}
	rng := newRand(seed)
	planes := make([][]float64, bitCount)
	for i := range planes {
		p := make([]float64, data.Dim)
		for j := range p {
			p[j] = rng.NormFloat64()
		}
		// Gram-Schmidt against the earlier planes while they can still be independent.
		if i < data.Dim {
			for _, prev := range planes[:i] {
				floats.AddScaled(p, -floats.Dot(p, prev), prev)
			}
		}
		if n := floats.Norm(p, 2); n > 0 {
			floats.Scale(1/n, p)
		}
		planes[i] = p
	}
	flat := make([]float32, 0, bitCount*data.Dim)
	for _, p := range planes {
		for _, x := range p {
			flat = append(flat, float32(x))
		}
	}
	return newHashFilter(ctx, data, bitCount, flat, ratio, workers)
}

func newHashFilter(ctx context.Context, data *core.Matrix, bitCount int, planes []float32, ratio float64, workers int) (*HashFilter, error) {
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: hash filter ratio must be in (0, 1], got %g", ErrInvalidConfig, ratio)
	}
	f := &HashFilter{
		Ratio:  ratio,
		bits:   bitCount,
		dim:    data.Dim,
		words:  (bitCount + 63) / 64,
		planes: planes,
	}
	f.codes = make([]uint64, data.Rows*f.words)
	err := parallelFor(ctx, data.Rows, core.Workers(workers), nil, func(start, end int) {
		for i := start; i < end; i++ {
			f.encode(data.Row(i), f.code(uint32(i)))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("hash dataset: %w", err)
	}
	return f, nil
}

// Bits returns the code length.
func (f *HashFilter) Bits() int { return f.bits }

func (f *HashFilter) code(id uint32) []uint64 {
	return f.codes[int(id)*f.words : (int(id)+1)*f.words]
}

func (f *HashFilter) encode(v []float32, dst []uint64) {
	clear(dst)
	for b := 0; b < f.bits; b++ {
		if vek32.Dot(f.planes[b*f.dim:(b+1)*f.dim], v) > 0 {
			dst[b/64] |= 1 << (b % 64)
		}
	}
}

func hamming(a, b []uint64) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// ForQuery implements CandidateFilter.
func (f *HashFilter) ForQuery(query []float32) NeighborFilter {
	q := make([]uint64, f.words)
	f.encode(query, q)
	return &hashNeighborFilter{f: f, query: q}
}

type hashScore struct {
	id   uint32
	dist int
}

type hashNeighborFilter struct {
	f      *HashFilter
	query  []uint64
	scored []hashScore
	out    []uint32
}

func (h *hashNeighborFilter) Filter(neighbors []uint32) []uint32 {
	keep := int(math.Ceil(float64(len(neighbors)) * h.f.Ratio))
	if keep >= len(neighbors) {
		return neighbors
	}
	h.scored = h.scored[:0]
	for _, id := range neighbors {
		h.scored = append(h.scored, hashScore{id: id, dist: hamming(h.query, h.f.code(id))})
	}
	slices.SortStableFunc(h.scored, func(a, b hashScore) int { return cmp.Compare(a.dist, b.dist) })
	h.out = h.out[:0]
	for _, s := range h.scored[:keep] {
		h.out = append(h.out, s.id)
	}
	return h.out
}

// SaveHashFunction writes the code length followed by the projection planes.
func (f *HashFilter) SaveHashFunction(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(f.bits)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, f.planes); err != nil {
		return err
	}
	return bw.Flush()
}

// LoadHashFunction reads planes written by SaveHashFunction and hashes data with them.
func LoadHashFunction(ctx context.Context, r io.Reader, data *core.Matrix, ratio float64, workers int) (*HashFilter, error) {
	var bitCount uint32
	if err := binary.Read(r, binary.LittleEndian, &bitCount); err != nil {
		return nil, fmt.Errorf("read hash width: %w", err)
	}
	if bitCount == 0 {
		return nil, fmt.Errorf("%w: hash function has 0 bits", ErrInvalidConfig)
	}
	planes := make([]float32, int(bitCount)*data.Dim)
	if err := binary.Read(r, binary.LittleEndian, planes); err != nil {
		return nil, fmt.Errorf("read hash planes: %w", err)
	}
	return newHashFilter(ctx, data, int(bitCount), planes, ratio, workers)
}
