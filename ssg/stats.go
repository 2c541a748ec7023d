package ssg

import "gonum.org/v1/gonum/stat"

// SearchStats counts the work done by one query or a batch of queries.
type SearchStats struct {
	DistanceEvals int // distance computations
	Expansions    int // pool entries whose neighbors were fetched
	Discarded     int // candidates evaluated but not closer than the pool's worst
	Filtered      int // neighbors dropped by a CandidateFilter before evaluation
}

// Add accumulates o into s.
func (s *SearchStats) Add(o SearchStats) {
	s.DistanceEvals += o.DistanceEvals
	s.Expansions += o.Expansions
	s.Discarded += o.Discarded
	s.Filtered += o.Filtered
}

// DegreeStats summarizes the out-degrees of a graph.
type DegreeStats struct {
	Min   int
	Max   int
	Mean  float64
	Empty int // nodes without out-edges
}

func degreeStats(adj [][]uint32) DegreeStats {
	if len(adj) == 0 {
		return DegreeStats{}
	}
	degrees := make([]float64, len(adj))
	ds := DegreeStats{Min: len(adj[0]), Max: len(adj[0])}
	for i, row := range adj {
		d := len(row)
		degrees[i] = float64(d)
		ds.Min = min(ds.Min, d)
		ds.Max = max(ds.Max, d)
		if d == 0 {
			ds.Empty++
		}
	}
	ds.Mean = stat.Mean(degrees, nil)
	return ds
}
