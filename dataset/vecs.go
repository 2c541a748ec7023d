package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/patrikhermansson/ssg/core"
	"github.com/rs/zerolog/log"
)

// ErrEmptyFile is returned when an input file holds no complete record.
var ErrEmptyFile = errors.New("file holds no complete record")

// LoadFvecs reads a TEXMEX .fvecs file: every record is an int32 dimension followed by
// that many float32 values. All records must share the same dimension.
func LoadFvecs(path string) (*core.Matrix, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, dim, err := scanVecs(path, data)
	if err != nil {
		return nil, err
	}
	out := make([]float32, rows*dim)
	stride := 4 + 4*dim
	for i := 0; i < rows; i++ {
		rec := data[i*stride+4 : (i+1)*stride]
		for j := 0; j < dim; j++ {
			out[i*dim+j] = math.Float32frombits(binary.LittleEndian.Uint32(rec[4*j:]))
		}
	}
	log.Debug().Msgf("Loaded %d vectors of dimension %d from %s", rows, dim, path)
	return core.NewMatrix(out, rows, dim)
}

// LoadIvecs reads a TEXMEX .ivecs file, typically ground-truth neighbor ids.
func LoadIvecs(path string) ([][]int, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, dim, err := scanVecs(path, data)
	if err != nil {
		return nil, err
	}
	out := make([][]int, rows)
	stride := 4 + 4*dim
	for i := range out {
		rec := data[i*stride+4 : (i+1)*stride]
		row := make([]int, dim)
		for j := range row {
			row[j] = int(int32(binary.LittleEndian.Uint32(rec[4*j:])))
		}
		out[i] = row
	}
	return out, nil
}

// scanVecs validates the record layout and returns the number of complete records.
// A trailing partial record is dropped with a warning.
func scanVecs(path string, data []byte) (rows, dim int, err error) {
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	d := int32(binary.LittleEndian.Uint32(data))
	if d <= 0 {
		return 0, 0, fmt.Errorf("%s: invalid dimension %d", path, d)
	}
	dim = int(d)
	stride := 4 + 4*dim
	rows = len(data) / stride
	if rows == 0 {
		return 0, 0, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	if extra := len(data) % stride; extra != 0 {
		log.Warn().Msgf("%s: dropping %d trailing bytes of a partial record", path, extra)
	}
	for i := 1; i < rows; i++ {
		if got := int(int32(binary.LittleEndian.Uint32(data[i*stride:]))); got != dim {
			return 0, 0, fmt.Errorf("%s: record %d has dimension %d, want %d", path, i, got, dim)
		}
	}
	return rows, dim, nil
}

// WriteFvecs writes m in .fvecs layout.
func WriteFvecs(w io.Writer, m *core.Matrix) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for i := 0; i < m.Rows; i++ {
		binary.LittleEndian.PutUint32(buf[:], uint32(m.Dim))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
		for _, v := range m.Row(i) {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteIvecs writes rows in .ivecs layout. Rows may differ in length.
func WriteIvecs(w io.Writer, rows [][]int) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for _, row := range rows {
		binary.LittleEndian.PutUint32(buf[:], uint32(len(row)))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// SaveFvecsFile writes m to path.
func SaveFvecsFile(path string, m *core.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFvecs(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
