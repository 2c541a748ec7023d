package ssg

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/patrikhermansson/ssg/core"
	"golang.org/x/sync/errgroup"
)

// CandidateFilter prepares a NeighborFilter for one query.
type CandidateFilter interface {
	ForQuery(query []float32) NeighborFilter
}

// NeighborFilter picks the neighbors of an expanded node worth scoring.
// Filter must not modify neighbors; it returns the subset to evaluate.
type NeighborFilter interface {
	Filter(neighbors []uint32) []uint32
}

// NoopFilter keeps every neighbor.
type NoopFilter struct{}

// ForQuery implements CandidateFilter.
func (NoopFilter) ForQuery([]float32) NeighborFilter { return NoopFilter{} }

// Filter implements NeighborFilter.
func (NoopFilter) Filter(neighbors []uint32) []uint32 { return neighbors }

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// searchCore is the query state shared by both graph representations.
type searchCore struct {
	n, dim  int
	eps     []uint32
	width   uint32
	lSearch int
	seed    int64 // random seeds of every query derive from it, so results are repeatable
	workers int
}

func (c *searchCore) search(sp space, filter CandidateFilter, query []float32, k, l int) ([]core.Neighbor, SearchStats, error) {
	if len(query) != c.dim {
		return nil, SearchStats{}, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), c.dim)
	}
	if k <= 0 {
		return nil, SearchStats{}, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
	}
	if l <= 0 {
		l = c.lSearch
	}
	l = max(l, k)
	if len(c.eps) >= l {
		return nil, SearchStats{}, fmt.Errorf("%w: %d entry points, L_search %d", ErrTooManyEntryPoints, len(c.eps), l)
	}
	l = min(l, c.n)

	t := traversal{sp: sp, query: query, nbuf: make([]uint32, 0, c.width)}
	if filter != nil {
		t.filter = filter.ForQuery(query)
	}
	p := newPool(l)
	visited := getVisited(c.n)
	defer putVisited(visited)
	t.run(p, seedIDs(newRand(c.seed), c.eps, c.n, l), visited)

	found := p.slice()[:min(k, p.size)]
	res := make([]core.Neighbor, len(found))
	for i, nb := range found {
		res[i] = core.Neighbor{ID: int(nb.ID), Distance: float64(sp.result(query, nb.Distance))}
	}
	return res, t.stats, nil
}

type searchFunc func(query []float32) ([]core.Neighbor, SearchStats, error)

// batch runs one search per query on the worker pool and sums their stats.
func (c *searchCore) batch(ctx context.Context, queries [][]float32, one searchFunc) ([][]core.Neighbor, SearchStats, error) {
	out := make([][]core.Neighbor, len(queries))
	perQuery := make([]SearchStats, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, st, err := one(q)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i], perQuery[i] = res, st
			return nil
		})
	}
	var total SearchStats
	if err := g.Wait(); err != nil {
		return nil, total, err
	}
	if err := ctx.Err(); err != nil {
		return nil, total, err
	}
	for _, st := range perQuery {
		total.Add(st)
	}
	return out, total, nil
}

// Search returns the k approximate nearest neighbors of query using L_search from the build config.
func (g *Graph) Search(query []float32, k int) ([]core.Neighbor, error) {
	res, _, err := g.SearchL(query, k, g.lSearch)
	return res, err
}

// SearchL searches with a candidate pool of size l. l is raised to k when smaller
// and capped at the number of nodes; it must exceed the number of entry points.
func (g *Graph) SearchL(query []float32, k, l int) ([]core.Neighbor, SearchStats, error) {
	if g.compacted {
		return nil, SearchStats{}, ErrCompacted
	}
	return g.search(g.space(), g.Filter, query, k, l)
}

// BatchSearch runs SearchL for every query in parallel.
func (g *Graph) BatchSearch(ctx context.Context, queries [][]float32, k, l int) ([][]core.Neighbor, SearchStats, error) {
	if g.compacted {
		return nil, SearchStats{}, ErrCompacted
	}
	return g.batch(ctx, queries, func(q []float32) ([]core.Neighbor, SearchStats, error) {
		return g.SearchL(q, k, l)
	})
}
