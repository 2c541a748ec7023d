package ssg

import "errors"

var (
	// ErrEmptyDataset is returned when a build or load is given no vectors.
	ErrEmptyDataset = errors.New("ssg: empty dataset")
	// ErrTooManyEntryPoints is returned when a search pool is not larger than the entry point set.
	ErrTooManyEntryPoints = errors.New("ssg: entry point count must be less than the search pool size")
	// ErrCompacted is returned by every Graph method once the graph was compacted.
	ErrCompacted = errors.New("ssg: graph was compacted")
	// ErrDimensionMismatch is returned when a query does not match the dataset dimension.
	ErrDimensionMismatch = errors.New("ssg: dimension mismatch")
	// ErrInvalidConfig is returned for out of range parameters.
	ErrInvalidConfig = errors.New("ssg: invalid config")
	// ErrGraphSizeMismatch is returned when a graph does not have one row per vector.
	ErrGraphSizeMismatch = errors.New("ssg: graph size does not match dataset")
	// ErrIDOutOfRange is returned when a graph references a node id not in the dataset.
	ErrIDOutOfRange = errors.New("ssg: node id out of range")
	// ErrUnsupportedDistance is returned by Compact when the distance cannot rank from a stored norm.
	ErrUnsupportedDistance = errors.New("ssg: distance does not support norm based comparison")
)
