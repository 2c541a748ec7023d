package ssg

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// chunkSize is the number of consecutive nodes a worker takes at a time.
const chunkSize = 100

// edgeBuffer is the N x R table of fixed capacity rows shared by all link workers.
type edgeBuffer struct {
	rows     []SimpleNeighbor
	versions []uint64 // bumped on every write, guarded by the row lock
	width    int
	locks    lockSet
}

func newEdgeBuffer(n, r, shards int) *edgeBuffer {
	rows := make([]SimpleNeighbor, n*r)
	for i := range rows {
		rows[i].Distance = sentinel
	}
	return &edgeBuffer{
		rows:     rows,
		versions: make([]uint64, n),
		width:    r,
		locks:    newLockSet(n, shards),
	}
}

func (b *edgeBuffer) row(id uint32) []SimpleNeighbor {
	start := int(id) * b.width
	return b.rows[start : start+b.width : start+b.width]
}

// adjacency materializes every row up to its first sentinel.
func (b *edgeBuffer) adjacency(n int) [][]uint32 {
	adj := make([][]uint32, n)
	for i := range adj {
		row := b.row(uint32(i))
		ids := make([]uint32, rowLen(row))
		for j := range ids {
			ids[j] = row[j].ID
		}
		adj[i] = ids
	}
	return adj
}

// parallelFor runs fn over [0, n) in chunks on at most workers goroutines.
// Cancellation is only observed between chunks.
func parallelFor(ctx context.Context, n, workers int, bar *progressbar.ProgressBar, fn func(start, end int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunkSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(start, end)
			if bar != nil {
				_ = bar.Add(end - start)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func newProgressBar(show bool, n int, desc string) *progressbar.ProgressBar {
	if !show {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionOnCompletion(func() { fmt.Print("\n") }),
	)
}

// link prunes every node of the candidate graph in parallel, then, after all rows
// are written, reciprocates every accepted edge.
func (s *buildState) link(ctx context.Context) error {
	log.Info().Msgf("Link phase 1: pruning %d nodes (L=%d, R=%d, A=%g)", s.n, s.cfg.L, s.r, s.cfg.Angle)
	bar := newProgressBar(s.cfg.ShowProgress, s.n, "pruning")
	err := parallelFor(ctx, s.n, s.workers, bar, func(start, end int) {
		flags := getVisited(s.n)
		defer putVisited(flags)
		cands := make([]SimpleNeighbor, 0, s.cfg.L+s.r)
		scratch := make([]SimpleNeighbor, 0, s.r)
		for i := start; i < end; i++ {
			q := uint32(i)
			cands = localPool(q, s.knn, s.data, s.dist, s.cfg.L, flags, cands[:0])
			cands = s.syncPrune(q, s.knn, cands, flags, scratch, s.edges.row(q))
			flags.Clear(uint(q))
			for _, c := range cands {
				flags.Clear(uint(c.ID))
			}
		}
	})
	if err != nil {
		return fmt.Errorf("link phase 1: %w", err)
	}

	log.Info().Msgf("Link phase 2: reciprocating edges (%s)", s.reciprocation())
	bar = newProgressBar(s.cfg.ShowProgress, s.n, "reciprocating")
	err = parallelFor(ctx, s.n, s.workers, bar, func(start, end int) {
		src := make([]SimpleNeighbor, s.r)
		tmp := make([]SimpleNeighbor, 0, s.r+1)
		scratch := make([]SimpleNeighbor, 0, s.r)
		for i := start; i < end; i++ {
			s.interInsert(uint32(i), src, tmp, scratch)
		}
	})
	if err != nil {
		return fmt.Errorf("link phase 2: %w", err)
	}
	return nil
}

func (s *buildState) reciprocation() Reciprocation {
	if s.cfg.Reciprocation == "" {
		return ReciprocationRelaxed
	}
	return s.cfg.Reciprocation
}

// interInsert offers the reverse of every out-edge of n to the destination row.
// The row of n is read under its own lock because other workers may be rewriting it.
func (s *buildState) interInsert(n uint32, src, tmp, scratch []SimpleNeighbor) {
	mu := s.edges.locks.of(n)
	mu.Lock()
	copy(src, s.edges.row(n))
	mu.Unlock()

	for _, e := range src[:rowLen(src)] {
		s.reciprocate(e.ID, SimpleNeighbor{ID: n, Distance: e.Distance}, tmp, scratch)
	}
}

// reciprocate adds sn to the row of des. A row with room gets sn appended. A full
// row is pruned again together with sn, outside the lock, and overwritten. In strict
// mode the overwrite is retried when the row changed while the lock was released.
func (s *buildState) reciprocate(des uint32, sn SimpleNeighbor, tmp, scratch []SimpleNeighbor) {
	strict := s.reciprocation() == ReciprocationStrict
	mu := s.edges.locks.of(des)
	for {
		mu.Lock()
		row := s.edges.row(des)
		tmp = tmp[:0]
		for _, x := range row {
			if x.empty() {
				break
			}
			if x.ID == sn.ID {
				mu.Unlock()
				return
			}
			tmp = append(tmp, x)
		}
		if len(tmp) < len(row) {
			row[len(tmp)] = sn
			s.edges.versions[des]++
			mu.Unlock()
			return
		}
		version := s.edges.versions[des]
		mu.Unlock()

		tmp = append(tmp, sn)
		result := s.prune(des, tmp, scratch)

		mu.Lock()
		if strict && s.edges.versions[des] != version {
			mu.Unlock()
			continue
		}
		writeRow(row, result)
		s.edges.versions[des]++
		mu.Unlock()
		return
	}
}
