package core

import (
	"errors"
	"fmt"
)

// Matrix is an immutable row-major dataset of Rows vectors with Dim components each.
type Matrix struct {
	Data []float32 // Rows*Dim values
	Rows int       // number of vectors
	Dim  int       // dimensionality
}

// NewMatrix wraps data as a rows x dim matrix. The slice is referenced, not copied.
func NewMatrix(data []float32, rows, dim int) (*Matrix, error) {
	if rows < 0 || dim <= 0 {
		return nil, fmt.Errorf("invalid matrix shape %dx%d", rows, dim)
	}
	if len(data) != rows*dim {
		return nil, fmt.Errorf("matrix data has %d values, want %d", len(data), rows*dim)
	}
	return &Matrix{Data: data, Rows: rows, Dim: dim}, nil
}

// MatrixFromRows copies equally sized vectors into a new Matrix.
func MatrixFromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows")
	}
	dim := len(rows[0])
	data := make([]float32, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(r), dim)
		}
		data = append(data, r...)
	}
	return &Matrix{Data: data, Rows: len(rows), Dim: dim}, nil
}

// Row returns the i-th vector. The returned slice aliases the matrix.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim : (i+1)*m.Dim]
}
