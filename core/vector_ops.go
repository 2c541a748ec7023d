package core

import (
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/floats"
	"golang.org/x/sync/errgroup"
)

// NormalizeVector scales vec to unit L2 norm in place. Zero vectors are left unchanged.
func NormalizeVector(vec []float32) {
	if len(vec) == 0 {
		return
	}
	n := norm(vec)
	if n == 0 {
		return
	}
	vek32.MulNumber_Inplace(vec, float32(1/n))
}

// NormalizeBatch normalizes multiple vectors in a batch using goroutines.
func NormalizeBatch(vecs [][]float32) {
	if len(vecs) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(defaultWorkers())
	for i := range vecs {
		g.Go(func() error {
			NormalizeVector(vecs[i])
			return nil
		})
	}
	_ = g.Wait()
}

// Centroid returns the component-wise mean of all rows of m.
// Accumulation happens in float64 so large datasets do not lose precision.
func Centroid(m *Matrix) []float32 {
	sum := make([]float64, m.Dim)
	row := make([]float64, m.Dim)
	for i := 0; i < m.Rows; i++ {
		for j, v := range m.Row(i) {
			row[j] = float64(v)
		}
		floats.Add(sum, row)
	}
	if m.Rows > 0 {
		floats.Scale(1/float64(m.Rows), sum)
	}
	out := make([]float32, m.Dim)
	for j, v := range sum {
		out[j] = float32(v)
	}
	return out
}
