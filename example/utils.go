package example

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/patrikhermansson/ssg/core"
)

// FormatResults returns a formatted string of neighbor results.
// maxResults specifies how many items to include.
func FormatResults(results []core.Neighbor, maxResults int) string {
	var sb strings.Builder
	for _, n := range results[:min(maxResults, len(results))] {
		fmt.Fprintf(&sb, "id=%d (dist=%.3f) ", n.ID, n.Distance)
	}
	return sb.String()
}

// FormatGroundTruth returns a formatted string of ground-truth neighbor results.
// distances may be nil when the ground truth carries ids only.
func FormatGroundTruth(neighbors []int, distances []float64, maxResults int) string {
	var sb strings.Builder
	for j, id := range neighbors[:min(maxResults, len(neighbors))] {
		if j < len(distances) {
			fmt.Fprintf(&sb, "id=%d (dist=%.3f) ", id, distances[j])
		} else {
			fmt.Fprintf(&sb, "id=%d ", id)
		}
	}
	return sb.String()
}

// RecallAtK computes Recall@k as the fraction of the first k ground-truth items that appear in the top k predictions.
func RecallAtK(predicted []core.Neighbor, groundTruth []int, k int) float64 {
	if k <= 0 || len(groundTruth) == 0 {
		return 0.0
	}
	truth := groundTruth[:min(k, len(groundTruth))]

	// Build a set of predicted IDs from the top k predictions.
	predSet := make(map[int]struct{}, k)
	for _, n := range predicted[:min(k, len(predicted))] {
		predSet[n.ID] = struct{}{}
	}

	// Count ground-truth items that appear in the predictions.
	correct := 0
	for _, id := range truth {
		if _, ok := predSet[id]; ok {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

type farthest []core.Neighbor

func (h farthest) Len() int           { return len(h) }
func (h farthest) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h farthest) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *farthest) Push(x any)        { *h = append(*h, x.(core.Neighbor)) }
func (h *farthest) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// Metric looks up a distance function in core.Distances by name.
func Metric(name string) (core.DistanceFunc, error) {
	fn, ok := core.Distances[name]
	if !ok {
		names := make([]string, 0, len(core.Distances))
		for n := range core.Distances {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown metric %q (available: %s)", name, strings.Join(names, ", "))
	}
	return fn, nil
}

// BruteForceTopK returns the exact k nearest rows of data, closest first.
func BruteForceTopK(data *core.Matrix, query []float32, k int, dist core.DistanceFunc) []core.Neighbor {
	h := make(farthest, 0, k+1)
	for i := 0; i < data.Rows; i++ {
		d := dist(query, data.Row(i))
		if len(h) < k {
			heap.Push(&h, core.Neighbor{ID: i, Distance: d})
		} else if k > 0 && d < h[0].Distance {
			h[0] = core.Neighbor{ID: i, Distance: d}
			heap.Fix(&h, 0)
		}
	}
	out := make([]core.Neighbor, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(core.Neighbor)
	}
	return out
}

// GroundTruth computes exact neighbor ids and distances for every query.
func GroundTruth(data *core.Matrix, queries [][]float32, k int, dist core.DistanceFunc) ([][]int, [][]float64) {
	truth := make([][]int, len(queries))
	dists := make([][]float64, len(queries))
	for i, q := range queries {
		for _, n := range BruteForceTopK(data, q, k, dist) {
			truth[i] = append(truth[i], n.ID)
			dists[i] = append(dists[i], n.Distance)
		}
	}
	return truth, dists
}
