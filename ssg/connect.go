package ssg

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ConnectivityStrategy picks the entry points of a freshly linked graph and adds
// edges until every node is reachable from them.
type ConnectivityStrategy interface {
	// Name identifies the strategy in logs.
	Name() string
	connect(ctx context.Context, s *buildState) ([]uint32, error)
}

// DFSExpand picks n_try random entry points and, for each one independently, walks
// the graph breadth first. Whenever the walk stalls with nodes left unvisited, the
// first visited node with spare degree gets an edge to the first unvisited node and
// the walk resumes from there. Degrees never exceed R; when no visited node has room
// the unvisited node stays unreachable and a warning is logged.
type DFSExpand struct{}

// Name implements ConnectivityStrategy.
func (DFSExpand) Name() string { return "dfs_expand" }

func (DFSExpand) connect(ctx context.Context, s *buildState) ([]uint32, error) {
	ids := make([]uint32, s.n)
	for i := range ids {
		ids[i] = uint32(i)
	}
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	eps := slices.Clone(ids[:min(s.cfg.NTry, s.n)])

	locks := newLockSet(s.n, s.cfg.LockShards)
	var patched, unpatched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ep := range eps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, u := s.expandFrom(ep, locks)
			log.Debug().Msgf("Entry point #%d (node %d): %d edges added", i, ep, p)
			patched.Add(int64(p))
			unpatched.Add(int64(u))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("connectivity repair: %w", err)
	}

	log.Info().Msgf("Connectivity repair added %d edges for %d entry points", patched.Load(), len(eps))
	if u := unpatched.Load(); u > 0 {
		log.Warn().Msgf("%d nodes could not be linked because every reachable node has degree R=%d", u, s.r)
	}
	return eps, nil
}

// expandFrom makes every node reachable from root, returning the number of edges
// added and the number of nodes that could not be linked.
func (s *buildState) expandFrom(root uint32, locks lockSet) (patched, unpatched int) {
	flags := bitset.New(uint(s.n))
	flags.Set(uint(root))
	visited := 1
	queue := []uint32{root}
	var buf []uint32
	for {
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			mu := locks.of(q)
			mu.Lock()
			buf = append(buf[:0], s.adj[q]...)
			mu.Unlock()
			for _, c := range buf {
				if flags.Test(uint(c)) {
					continue
				}
				flags.Set(uint(c))
				visited++
				queue = append(queue, c)
			}
		}
		if visited >= s.n {
			return patched, unpatched
		}
		u, ok := flags.NextClear(0)
		if !ok || u >= uint(s.n) {
			return patched, unpatched
		}
		if s.attach(uint32(u), flags, locks) {
			patched++
		} else {
			unpatched++
		}
		flags.Set(u)
		visited++
		queue = append(queue, uint32(u))
	}
}

// attach adds an edge to target from the first visited node whose degree is below R.
func (s *buildState) attach(target uint32, flags *bitset.BitSet, locks lockSet) bool {
	for j, ok := flags.NextSet(0); ok; j, ok = flags.NextSet(j + 1) {
		mu := locks.of(uint32(j))
		mu.Lock()
		switch {
		case slices.Contains(s.adj[j], target):
			// Another walk linked it after ours passed j.
			mu.Unlock()
			return true
		case len(s.adj[j]) < s.r:
			s.adj[j] = append(s.adj[j], target)
			mu.Unlock()
			return true
		}
		mu.Unlock()
	}
	return false
}

// StrongConnect is the component merging variant. It walks the
// graph depth first from one random root, adding the reverse of every tree edge.
// When nodes remain, the first unvisited one is searched for in the graph and the
// closest visited node found gets an edge to it. It runs sequentially and yields a
// single entry point; DFSExpand is the default.
//
// StrongConnect does not enforce the out-degree bound: back edges and component
// links are appended regardless of R, so rows may end up longer than R. Graph.Width
// grows to match, and the number of rows over the bound is logged as a warning.
type StrongConnect struct{}

// Name implements ConnectivityStrategy.
func (StrongConnect) Name() string { return "strong_connect" }

func (StrongConnect) connect(ctx context.Context, s *buildState) ([]uint32, error) {
	root := uint32(s.rng.IntN(s.n))
	flags := bitset.New(uint(s.n))
	visited := s.dfsBackEdges(root, flags)
	added := 0
	for visited < s.n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("connectivity repair: %w", err)
		}
		u, ok := flags.NextClear(0)
		if !ok || u >= uint(s.n) {
			break
		}
		from := s.findRoot(uint32(u), flags)
		s.adj[from] = append(s.adj[from], uint32(u))
		added++
		visited += s.dfsBackEdges(uint32(u), flags)
	}
	log.Info().Msgf("Strong connect added %d component links from root %d", added, root)
	over := 0
	for _, row := range s.adj {
		if len(row) > s.r {
			over++
		}
	}
	if over > 0 {
		log.Warn().Msgf("Strong connect left %d nodes with more than R=%d out-edges", over, s.r)
	}
	return []uint32{root}, nil
}

// dfsBackEdges marks every node reachable from start and adds child->parent for
// each tree edge that lacks it. Returns the number of newly marked nodes.
func (s *buildState) dfsBackEdges(start uint32, flags *bitset.BitSet) int {
	flags.Set(uint(start))
	count := 1
	stack := []uint32{start}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		next, found := uint32(0), false
		for _, c := range s.adj[top] {
			if !flags.Test(uint(c)) {
				next, found = c, true
				break
			}
		}
		if !found {
			stack = stack[:len(stack)-1]
			continue
		}
		flags.Set(uint(next))
		count++
		if !slices.Contains(s.adj[next], top) {
			s.adj[next] = append(s.adj[next], top)
		}
		stack = append(stack, next)
	}
	return count
}

// findRoot searches the graph for target and returns the closest already marked node
// met on the way, or a random marked node when the search met none.
func (s *buildState) findRoot(target uint32, flags *bitset.BitSet) uint32 {
	t := traversal{
		sp:      adjacencySpace{adj: s.adj, data: s.data, dist: s.dist},
		query:   s.data.Row(int(target)),
		collect: true,
	}
	l := min(s.cfg.L, s.n)
	visited := getVisited(s.n)
	t.run(newPool(l), seedIDs(s.rng, nil, s.n, l), visited)
	putVisited(visited)

	slices.SortStableFunc(t.fullset, func(a, b Neighbor) int { return cmp.Compare(a.Distance, b.Distance) })
	for _, c := range t.fullset {
		if c.ID != target && flags.Test(uint(c.ID)) {
			return c.ID
		}
	}
	if j, ok := flags.NextSet(uint(s.rng.IntN(s.n))); ok && j < uint(s.n) {
		return uint32(j)
	}
	j, _ := flags.NextSet(0)
	return uint32(j)
}
