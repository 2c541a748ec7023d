package dataset

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/patrikhermansson/ssg/core"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrRaggedGraph is returned when rows of a k-NN graph to be written differ in length.
var ErrRaggedGraph = errors.New("k-NN graph rows must all have the same length")

// LoadKNNGraph reads an efanna k-NN graph file. The first four bytes hold K; every node
// then occupies K+1 uint32 values, a four byte prefix followed by K neighbor ids.
// Trailing bytes that do not form a whole row are dropped with a warning.
func LoadKNNGraph(path string) ([][]uint32, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	if len(data) < 4 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	k := int(binary.LittleEndian.Uint32(data))
	if k == 0 {
		return nil, fmt.Errorf("%s: k-NN graph declares K = 0", path)
	}
	stride := (k + 1) * 4
	n := len(data) / stride
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	if extra := len(data) % stride; extra != 0 {
		log.Warn().Msgf("%s: dropping %d trailing bytes of a partial row", path, extra)
	}

	ids := make([]uint32, n*k)
	graph := make([][]uint32, n)
	for i := 0; i < n; i++ {
		row := ids[i*k : (i+1)*k : (i+1)*k]
		rec := data[i*stride+4 : (i+1)*stride]
		for j := range row {
			row[j] = binary.LittleEndian.Uint32(rec[4*j:])
		}
		graph[i] = row
	}
	log.Info().Msgf("Loaded k-NN graph with %d nodes, K = %d", n, k)
	return graph, nil
}

// WriteKNNGraph writes graph in the format read by LoadKNNGraph.
func WriteKNNGraph(w io.Writer, graph [][]uint32) error {
	if len(graph) == 0 {
		return ErrEmptyFile
	}
	k := len(graph[0])
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for i, row := range graph {
		if len(row) != k {
			return fmt.Errorf("row %d has %d ids, want %d: %w", i, len(row), k, ErrRaggedGraph)
		}
		binary.LittleEndian.PutUint32(buf[:], uint32(k))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
		for _, id := range row {
			binary.LittleEndian.PutUint32(buf[:], id)
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// SaveKNNGraphFile writes graph to path.
func SaveKNNGraphFile(path string, graph [][]uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteKNNGraph(f, graph); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type knnCandidate struct {
	id   uint32
	dist float32
}

// farthestFirst is a max-heap on distance, used to keep the k closest seen so far.
type farthestFirst []knnCandidate

func (h farthestFirst) Len() int           { return len(h) }
func (h farthestFirst) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h farthestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *farthestFirst) Push(x any)        { *h = append(*h, x.(knnCandidate)) }
func (h *farthestFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// ExactKNNGraph computes the exact k nearest neighbors of every row of m by brute force,
// excluding the node itself, sorted by ascending distance. k is capped at m.Rows-1.
// It is quadratic in m.Rows and meant for tooling and tests.
func ExactKNNGraph(ctx context.Context, m *core.Matrix, k int, dist core.Distance, workers int) ([][]uint32, error) {
	if m.Rows < 2 {
		return nil, fmt.Errorf("exact k-NN graph needs at least 2 vectors, got %d", m.Rows)
	}
	if k <= 0 {
		return nil, fmt.Errorf("invalid k %d", k)
	}
	if k > m.Rows-1 {
		k = m.Rows - 1
	}

	graph := make([][]uint32, m.Rows)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(core.Workers(workers))
	const chunk = 64
	for start := 0; start < m.Rows; start += chunk {
		end := min(start+chunk, m.Rows)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h := make(farthestFirst, 0, k+1)
			for i := start; i < end; i++ {
				h = h[:0]
				q := m.Row(i)
				for j := 0; j < m.Rows; j++ {
					if j == i {
						continue
					}
					d := dist.Compare(q, m.Row(j))
					if len(h) < k {
						heap.Push(&h, knnCandidate{id: uint32(j), dist: d})
					} else if d < h[0].dist {
						h[0] = knnCandidate{id: uint32(j), dist: d}
						heap.Fix(&h, 0)
					}
				}
				row := make([]uint32, len(h))
				for p := len(h) - 1; p >= 0; p-- {
					row[p] = heap.Pop(&h).(knnCandidate).id
				}
				graph[i] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return graph, nil
}
