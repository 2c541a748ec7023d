package ssg

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/rs/zerolog/log"
)

// Builder refines a candidate k-NN graph into a satellite system graph.
type Builder struct {
	Distance     core.Distance        // defaults to core.SquaredL2
	Connectivity ConnectivityStrategy // defaults to DFSExpand

	cfg  Config
	data *core.Matrix
}

// NewBuilder returns a Builder over data. data must not change until the built graph is discarded.
func NewBuilder(data *core.Matrix, cfg Config) (*Builder, error) {
	if data == nil || data.Rows == 0 {
		return nil, ErrEmptyDataset
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{
		Distance:     core.SquaredL2{},
		Connectivity: DFSExpand{},
		cfg:          cfg,
		data:         data,
	}, nil
}

// buildState is shared by the build steps.
type buildState struct {
	pruner
	cfg     Config
	n       int
	knn     [][]uint32  // candidate graph, read only
	edges   *edgeBuffer // link output
	adj     [][]uint32  // materialized graph, extended by connectivity repair
	workers int
	rng     *rand.Rand
}

// BuildFromFile loads the candidate graph from Config.NNGraphPath and builds.
func (b *Builder) BuildFromFile(ctx context.Context) (*Graph, error) {
	if b.cfg.NNGraphPath == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrInvalidConfig, KeyNNGraphPath)
	}
	knn, err := dataset.LoadKNNGraph(b.cfg.NNGraphPath)
	if err != nil {
		return nil, fmt.Errorf("load candidate graph: %w", err)
	}
	return b.Build(ctx, knn)
}

// Build refines knn, which must hold one row of candidate ids per vector.
// knn is only read.
func (b *Builder) Build(ctx context.Context, knn [][]uint32) (*Graph, error) {
	n := b.data.Rows
	if len(knn) != n {
		return nil, fmt.Errorf("%w: %d candidate rows for %d vectors", ErrGraphSizeMismatch, len(knn), n)
	}
	for i, row := range knn {
		for _, id := range row {
			if int(id) >= n {
				return nil, fmt.Errorf("%w: candidate row %d references %d", ErrIDOutOfRange, i, id)
			}
		}
	}

	start := time.Now()
	seed := b.cfg.seed()
	dist := b.Distance
	if dist == nil {
		dist = core.SquaredL2{}
	}
	strategy := b.Connectivity
	if strategy == nil {
		strategy = DFSExpand{}
	}
	log.Debug().Msgf("SIMD features: %s", core.SIMDSummary())

	s := &buildState{
		pruner:  pruner{data: b.data, dist: dist, r: b.cfg.R, threshold: b.cfg.threshold()},
		cfg:     b.cfg,
		n:       n,
		knn:     knn,
		edges:   newEdgeBuffer(n, b.cfg.R, b.cfg.LockShards),
		workers: core.Workers(b.cfg.Workers),
		rng:     newRand(seed),
	}

	root := s.centroidRoot()
	log.Info().Msgf("Centroid entry node: %d", root)

	if err := s.link(ctx); err != nil {
		return nil, err
	}
	s.adj = s.edges.adjacency(n)
	s.edges = nil

	log.Info().Msgf("Connectivity repair: %s", strategy.Name())
	eps, err := strategy.connect(ctx, s)
	if err != nil {
		return nil, err
	}

	ds := degreeStats(s.adj)
	g := &Graph{
		searchCore: searchCore{
			n:       n,
			dim:     b.data.Dim,
			eps:     eps,
			width:   uint32(max(b.cfg.R, ds.Max)),
			lSearch: b.cfg.LSearch,
			seed:    seed,
			workers: s.workers,
		},
		data: b.data,
		dist: dist,
		adj:  s.adj,
		root: root,
	}
	log.Info().Msgf("Built graph over %d nodes in %.2fs: degree max %d, min %d, avg %.2f, %d entry points",
		n, time.Since(start).Seconds(), ds.Max, ds.Min, ds.Mean, len(eps))
	return g, nil
}

// centroidRoot finds the node closest to the dataset mean on the candidate graph.
func (s *buildState) centroidRoot() uint32 {
	l := min(s.cfg.L, s.n)
	t := traversal{
		sp:    adjacencySpace{adj: s.knn, data: s.data, dist: s.dist},
		query: core.Centroid(s.data),
	}
	p := newPool(l)
	visited := getVisited(s.n)
	defer putVisited(visited)
	t.run(p, genRandom(s.rng, make([]uint32, l), s.n), visited)
	return p.items[0].ID
}

// Graph is a satellite system graph held as adjacency lists.
// It is safe for concurrent searches. After Compact every method returns ErrCompacted.
type Graph struct {
	searchCore

	// Filter, when set, may subsample each expanded node's neighbors before they are scored.
	Filter CandidateFilter

	data      *core.Matrix
	dist      core.Distance
	adj       [][]uint32
	root      uint32
	compacted bool
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return g.n }

// Neighbors returns the out-edges of id. The slice must not be modified.
func (g *Graph) Neighbors(id uint32) ([]uint32, error) {
	if g.compacted {
		return nil, ErrCompacted
	}
	if int(id) >= g.n {
		return nil, fmt.Errorf("%w: %d", ErrIDOutOfRange, id)
	}
	return g.adj[id], nil
}

// EntryPoints returns the search seeds chosen by connectivity repair.
func (g *Graph) EntryPoints() ([]uint32, error) {
	if g.compacted {
		return nil, ErrCompacted
	}
	return g.eps, nil
}

// Width returns the maximum out-degree the graph was built or loaded with.
func (g *Graph) Width() (uint32, error) {
	if g.compacted {
		return 0, ErrCompacted
	}
	return g.width, nil
}

// Root returns the node closest to the dataset centroid, found during build.
// Loaded graphs report the first entry point.
func (g *Graph) Root() (uint32, error) {
	if g.compacted {
		return 0, ErrCompacted
	}
	return g.root, nil
}

// DegreeStats summarizes the out-degrees.
func (g *Graph) DegreeStats() (DegreeStats, error) {
	if g.compacted {
		return DegreeStats{}, ErrCompacted
	}
	return degreeStats(g.adj), nil
}

// Stats implements core.Searcher.
func (g *Graph) Stats() core.IndexStats {
	return core.IndexStats{
		Count:       g.n,
		Dimension:   g.dim,
		Distance:    fmt.Sprintf("%T", g.dist),
		EntryPoints: len(g.eps),
		MaxDegree:   int(g.width),
		Compact:     g.compacted,
	}
}

func (g *Graph) space() adjacencySpace {
	return adjacencySpace{adj: g.adj, data: g.data, dist: g.dist}
}

// Check interface compliance at compile time.
var _ core.Index = (*Graph)(nil)
