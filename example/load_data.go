package example

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/rs/zerolog/log"
)

// Dataset bundles base vectors, queries and their ground truth.
type Dataset struct {
	Train     *core.Matrix
	Test      [][]float32
	Neighbors [][]int     // ground-truth neighbor ids per query
	Distances [][]float64 // ground-truth distances per query, nil for TEXMEX sets
}

// LoadCSVDataset loads a dataset from a directory of CSV files without headers:
//   - train.csv       (vectors to index)
//   - test.csv        (query vectors)
//   - neighbors.csv   (expected neighbor IDs per query)
//   - distances.csv   (expected distances per query, optional)
func LoadCSVDataset(dir string) (*Dataset, error) {
	log.Info().Msgf("Loading dataset from directory: %s", dir)

	train, err := readCSV[float32](filepath.Join(dir, "train.csv"), false)
	if err != nil {
		return nil, fmt.Errorf("failed to load train.csv: %w", err)
	}
	m, err := core.MatrixFromRows(train)
	if err != nil {
		return nil, fmt.Errorf("train.csv: %w", err)
	}

	ds := &Dataset{Train: m}
	if ds.Test, err = readCSV[float32](filepath.Join(dir, "test.csv"), false); err != nil {
		return nil, fmt.Errorf("failed to load test.csv: %w", err)
	}
	if ds.Neighbors, err = readCSV[int](filepath.Join(dir, "neighbors.csv"), false); err != nil {
		return nil, fmt.Errorf("failed to load neighbors.csv: %w", err)
	}
	ds.Distances, err = readCSV[float64](filepath.Join(dir, "distances.csv"), false)
	if errors.Is(err, os.ErrNotExist) {
		ds.Distances = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load distances.csv: %w", err)
	}

	log.Info().Msgf("Loaded %d training vectors and %d queries", m.Rows, len(ds.Test))
	return ds, nil
}

// LoadTexmexDataset loads <name>_base.fvecs, <name>_query.fvecs and
// <name>_groundtruth.ivecs from dir, the layout of the SIFT and GIST corpora.
func LoadTexmexDataset(dir, name string) (*Dataset, error) {
	base, err := dataset.LoadFvecs(filepath.Join(dir, name+"_base.fvecs"))
	if err != nil {
		return nil, err
	}
	queries, err := dataset.LoadFvecs(filepath.Join(dir, name+"_query.fvecs"))
	if err != nil {
		return nil, err
	}
	if queries.Dim != base.Dim {
		return nil, fmt.Errorf("query dimension %d does not match base dimension %d", queries.Dim, base.Dim)
	}
	truth, err := dataset.LoadIvecs(filepath.Join(dir, name+"_groundtruth.ivecs"))
	if err != nil {
		return nil, err
	}
	return &Dataset{Train: base, Test: Rows(queries), Neighbors: truth}, nil
}

// ComputeGroundTruth fills Neighbors and Distances with the exact k nearest
// training vectors of every query under the named metric (see core.Distances).
func (ds *Dataset) ComputeGroundTruth(k int, metric string) error {
	dist, err := Metric(metric)
	if err != nil {
		return err
	}
	log.Info().Msgf("Computing exact %d-NN ground truth for %d queries (%s)", k, len(ds.Test), metric)
	ds.Neighbors, ds.Distances = GroundTruth(ds.Train, ds.Test, k, dist)
	return nil
}

// Normalize scales every training and query vector to unit length, so that
// squared L2 ranks like cosine or angular distance.
func (ds *Dataset) Normalize() {
	core.NormalizeBatch(Rows(ds.Train))
	core.NormalizeBatch(ds.Test)
}

// Rows splits a matrix into per-row slices that alias it.
func Rows(m *core.Matrix) [][]float32 {
	out := make([][]float32, m.Rows)
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// readCSV is a generic CSV reader for types: int, float32, and float64.
func readCSV[T int | float32 | float64](path string, skipHeader bool) ([][]T, error) {
	log.Debug().Msgf("Opening CSV file: %s", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var result [][]T

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read error in %s: %w", path, err)
		}
		if skipHeader {
			skipHeader = false
			continue
		}
		row := make([]T, len(record))
		for i, val := range record {
			parsed, err := parseValue[T](val)
			if err != nil {
				return nil, fmt.Errorf("parse error at col %d in %s: %w", i, path, err)
			}
			row[i] = parsed
		}
		result = append(result, row)
	}

	log.Debug().Msgf("Parsed %d rows from %s", len(result), path)
	return result, nil
}

// parseValue converts a string to T (int, float32, or float64).
func parseValue[T int | float32 | float64](s string) (T, error) {
	s = strings.TrimSpace(s)
	var zero T
	switch any(zero).(type) {
	case int:
		v, err := strconv.Atoi(s)
		return any(v).(T), err
	case float32:
		v, err := strconv.ParseFloat(s, 32)
		return any(float32(v)).(T), err
	case float64:
		v, err := strconv.ParseFloat(s, 64)
		return any(v).(T), err
	default:
		return zero, fmt.Errorf("unsupported type %T", zero)
	}
}
