package ssg

import (
	"context"
	"fmt"
	"math"
	"unsafe"

	"github.com/patrikhermansson/ssg/core"
	"github.com/rs/zerolog/log"
)

// CompactGraph stores the graph in one contiguous arena of 4-byte words with a fixed
// stride per node:
//
//	float32 norm | D x float32 vector | uint32 degree | width x uint32 neighbor ids
//
// so stride = (D+1)*4 + (width+1)*4 bytes. Vectors and ids are stored in native byte
// order and read in place through typed views, so scoring a candidate touches only
// its own record. It is immutable and safe for concurrent searches.
type CompactGraph struct {
	searchCore

	// Filter, when set, may subsample each expanded node's neighbors before they are scored.
	Filter CandidateFilter

	arena  []uint32
	words  int // stride in words
	stride int
	dist   core.NormDistance
}

// Compact moves the graph into a CompactGraph. Adjacency lists are released as they
// are copied, and g answers ErrCompacted from then on. The distance must implement
// core.NormDistance.
func (g *Graph) Compact() (*CompactGraph, error) {
	if g.compacted {
		return nil, ErrCompacted
	}
	nd, ok := g.dist.(core.NormDistance)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedDistance, g.dist)
	}

	width := int(g.width)
	for _, row := range g.adj {
		width = max(width, len(row))
	}
	cg := &CompactGraph{
		searchCore: g.searchCore,
		Filter:     g.Filter,
		words:      g.dim + 1 + width + 1,
		dist:       nd,
	}
	cg.width = uint32(width)
	cg.stride = cg.words * 4
	cg.arena = make([]uint32, g.n*cg.words)
	for i := 0; i < g.n; i++ {
		id := uint32(i)
		rec := cg.record(id)
		v := g.data.Row(i)
		rec[0] = math.Float32bits(nd.Norm(v))
		copy(cg.vectorView(id), v)
		rec[g.dim+1] = uint32(len(g.adj[i]))
		copy(rec[g.dim+2:], g.adj[i])
		g.adj[i] = nil
	}

	g.adj = nil
	g.data = nil
	g.compacted = true
	log.Info().Msgf("Compacted graph into %d bytes (stride %d)", len(cg.arena)*4, cg.stride)
	return cg, nil
}

func (c *CompactGraph) record(id uint32) []uint32 {
	start := int(id) * c.words
	return c.arena[start : start+c.words : start+c.words]
}

// vectorView returns the stored vector of id without copying.
func (c *CompactGraph) vectorView(id uint32) []float32 {
	rec := c.record(id)
	return unsafe.Slice((*float32)(unsafe.Pointer(&rec[1])), c.dim)
}

// neighborView returns the stored neighbor ids of id without copying.
func (c *CompactGraph) neighborView(id uint32) []uint32 {
	rec := c.record(id)
	deg := rec[c.dim+1]
	return rec[c.dim+2 : c.dim+2+int(deg)]
}

// Len returns the number of nodes.
func (c *CompactGraph) Len() int { return c.n }

// Width returns the neighbor capacity of each node record.
func (c *CompactGraph) Width() uint32 { return c.width }

// Stride returns the size in bytes of one node record.
func (c *CompactGraph) Stride() int { return c.stride }

// EntryPoints returns the search seeds.
func (c *CompactGraph) EntryPoints() []uint32 { return c.eps }

// Norm returns the stored norm term of id.
func (c *CompactGraph) Norm(id uint32) float32 {
	return math.Float32frombits(c.record(id)[0])
}

// Vector copies the vector of id into dst, which is grown when too short.
func (c *CompactGraph) Vector(id uint32, dst []float32) []float32 {
	if cap(dst) < c.dim {
		dst = make([]float32, c.dim)
	}
	dst = dst[:c.dim]
	copy(dst, c.vectorView(id))
	return dst
}

// Neighbors copies the neighbor ids of id into dst, which is grown when too short.
func (c *CompactGraph) Neighbors(id uint32, dst []uint32) []uint32 {
	nbrs := c.neighborView(id)
	if cap(dst) < len(nbrs) {
		dst = make([]uint32, len(nbrs))
	}
	dst = dst[:len(nbrs)]
	copy(dst, nbrs)
	return dst
}

// Stats implements core.Searcher.
func (c *CompactGraph) Stats() core.IndexStats {
	return core.IndexStats{
		Count:       c.n,
		Dimension:   c.dim,
		Distance:    fmt.Sprintf("%T", c.dist),
		EntryPoints: len(c.eps),
		MaxDegree:   int(c.width),
		Compact:     true,
	}
}

// compactSpace scores candidates with CompareWithNorm, which ranks like the full
// distance without the query's own norm. result adds it back.
type compactSpace struct {
	g *CompactGraph
}

func (s compactSpace) neighbors(id uint32, _ []uint32) []uint32 {
	return s.g.neighborView(id)
}

func (s compactSpace) distance(query []float32, id uint32) float32 {
	return s.g.dist.CompareWithNorm(query, s.g.vectorView(id), s.g.Norm(id))
}

func (s compactSpace) result(query []float32, d float32) float32 {
	return max(0, d+s.g.dist.Norm(query))
}

// Search returns the k approximate nearest neighbors of query using the default L_search.
func (c *CompactGraph) Search(query []float32, k int) ([]core.Neighbor, error) {
	res, _, err := c.SearchL(query, k, c.lSearch)
	return res, err
}

// SearchL searches with a candidate pool of size l, like Graph.SearchL.
func (c *CompactGraph) SearchL(query []float32, k, l int) ([]core.Neighbor, SearchStats, error) {
	return c.search(compactSpace{g: c}, c.Filter, query, k, l)
}

// BatchSearch runs SearchL for every query in parallel.
func (c *CompactGraph) BatchSearch(ctx context.Context, queries [][]float32, k, l int) ([][]core.Neighbor, SearchStats, error) {
	return c.batch(ctx, queries, func(q []float32) ([]core.Neighbor, SearchStats, error) {
		return c.SearchL(q, k, l)
	})
}

// Check interface compliance at compile time.
var _ core.Searcher = (*CompactGraph)(nil)
