package core

import "io"

// Searcher is a read-only ANN index that answers top-k queries.
type Searcher interface {

	// Search returns the ids and distances of the k nearest neighbors for a query vector.
	Search(query []float32, k int) ([]Neighbor, error)

	// Stats returns metadata about the index, such as count and dimensionality.
	Stats() IndexStats
}

// Index is a Searcher whose graph can be persisted.
type Index interface {
	Searcher

	// Save writes the index state to w.
	Save(w io.Writer) error
}

// Neighbor holds a neighbor's id and its computed distance.
type Neighbor struct {
	ID       int
	Distance float64
}

// IndexStats contains metadata about the index.
type IndexStats struct {
	Count       int    // total number of indexed vectors
	Dimension   int    // dimensionality of vectors
	Distance    string // name of the distance metric
	EntryPoints int    // number of search entry points
	MaxDegree   int    // width of the graph
	Compact     bool   // true once the graph lives in a packed buffer
}
