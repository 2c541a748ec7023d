package ssg

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/patrikhermansson/ssg/core"
)

// space is what a best-first traversal walks: a graph plus a way to score nodes against a query.
type space interface {
	// neighbors returns the out-edges of id. buf may be used as backing storage.
	// The result must not be modified.
	neighbors(id uint32, buf []uint32) []uint32
	distance(query []float32, id uint32) float32
	// result converts a pool distance into the distance reported to callers.
	result(query []float32, d float32) float32
}

// adjacencySpace walks adjacency lists over the raw dataset.
type adjacencySpace struct {
	adj  [][]uint32
	data *core.Matrix
	dist core.Distance
}

func (s adjacencySpace) neighbors(id uint32, _ []uint32) []uint32 { return s.adj[id] }

func (s adjacencySpace) distance(query []float32, id uint32) float32 {
	return s.dist.Compare(query, s.data.Row(int(id)))
}

func (s adjacencySpace) result(_ []float32, d float32) float32 { return d }

// traversal holds the per-query state of a best-first expansion.
type traversal struct {
	sp     space
	query  []float32
	filter NeighborFilter
	stats  SearchStats

	// collect keeps every evaluated candidate in fullset.
	collect bool
	fullset []Neighbor

	nbuf []uint32
}

// run inserts the seeds into p and expands the closest unexpanded candidate until
// none is left. After an insertion ahead of the cursor the scan resumes at that rank.
func (t *traversal) run(p *pool, seeds []uint32, visited *bitset.BitSet) {
	for _, id := range seeds {
		if visited.Test(uint(id)) {
			continue
		}
		visited.Set(uint(id))
		d := t.evaluate(id)
		p.insert(Neighbor{ID: id, Distance: d, Unexpanded: true})
	}

	k := 0
	for k < p.size {
		nk := p.capacity
		if p.items[k].Unexpanded {
			p.items[k].Unexpanded = false
			t.stats.Expansions++
			nbrs := t.sp.neighbors(p.items[k].ID, t.nbuf[:0])
			if t.filter != nil {
				before := len(nbrs)
				nbrs = t.filter.Filter(nbrs)
				t.stats.Filtered += before - len(nbrs)
			}
			for _, id := range nbrs {
				if visited.Test(uint(id)) {
					continue
				}
				visited.Set(uint(id))
				d := t.evaluate(id)
				if p.full() && d >= p.worst() {
					t.stats.Discarded++
					continue
				}
				if r := p.insert(Neighbor{ID: id, Distance: d, Unexpanded: true}); r < nk {
					nk = r
				}
			}
		}
		if nk <= k {
			k = nk
		} else {
			k++
		}
	}
}

func (t *traversal) evaluate(id uint32) float32 {
	d := t.sp.distance(t.query, id)
	t.stats.DistanceEvals++
	if t.collect {
		t.fullset = append(t.fullset, Neighbor{ID: id, Distance: d})
	}
	return d
}

// localPool gathers up to l distinct two-hop neighbors of q in adj, scored against q.
// flags is left with q and every gathered id set.
func localPool(q uint32, adj [][]uint32, data *core.Matrix, dist core.Distance, l int, flags *bitset.BitSet, out []SimpleNeighbor) []SimpleNeighbor {
	flags.Set(uint(q))
	qv := data.Row(int(q))
	for _, nid := range adj[q] {
		for _, nnid := range adj[nid] {
			if flags.Test(uint(nnid)) {
				continue
			}
			flags.Set(uint(nnid))
			out = append(out, SimpleNeighbor{ID: nnid, Distance: dist.Compare(qv, data.Row(int(nnid)))})
			if len(out) >= l {
				return out
			}
		}
	}
	return out
}

// genRandom fills out with distinct ids drawn from [0, n). When out is at least as
// long as n it receives every id once.
func genRandom(rng *rand.Rand, out []uint32, n int) []uint32 {
	size := len(out)
	if size >= n {
		out = out[:n]
		for i := range out {
			out[i] = uint32(i)
		}
		rng.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	for i := range out {
		out[i] = uint32(rng.IntN(n - size))
	}
	slices.Sort(out)
	for i := 1; i < size; i++ {
		if out[i] <= out[i-1] {
			out[i] = out[i-1] + 1
		}
	}
	off := uint32(rng.IntN(n))
	for i := range out {
		out[i] = (out[i] + off) % uint32(n)
	}
	return out
}

// seedIDs returns up to l distinct seeds: the entry points first, padded with random ids.
func seedIDs(rng *rand.Rand, eps []uint32, n, l int) []uint32 {
	seeds := make([]uint32, 0, l)
	seen := make(map[uint32]struct{}, len(eps))
	for _, ep := range eps {
		if len(seeds) == l {
			return seeds
		}
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		seeds = append(seeds, ep)
	}
	for _, id := range genRandom(rng, make([]uint32, min(l, n)), n) {
		if len(seeds) == l {
			break
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seeds = append(seeds, id)
	}
	return seeds
}

var visitedPool sync.Pool

// getVisited returns a cleared bitset able to hold n ids.
func getVisited(n int) *bitset.BitSet {
	if v, ok := visitedPool.Get().(*bitset.BitSet); ok && v.Len() >= uint(n) {
		v.ClearAll()
		return v
	}
	return bitset.New(uint(n))
}

func putVisited(v *bitset.BitSet) { visitedPool.Put(v) }
