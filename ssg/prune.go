package ssg

import (
	"cmp"
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/patrikhermansson/ssg/core"
)

func cosDegrees(deg float64) float64 { return math.Cos(deg / 180 * math.Pi) }

// pruner selects at most r angularly spread neighbors for a node.
type pruner struct {
	data      *core.Matrix
	dist      core.Distance
	r         int
	threshold float32 // cos of the diversification angle
}

// occludes reports whether candidate p, seen from the center, lies within the
// diversification angle of the accepted neighbor acc. Distances are squared, so the
// law of cosines needs no squaring. A zero distance yields NaN and never occludes.
func (pr *pruner) occludes(p, acc SimpleNeighbor) bool {
	if p.ID == acc.ID {
		return true
	}
	djk := pr.dist.Compare(pr.data.Row(int(acc.ID)), pr.data.Row(int(p.ID)))
	cos := (p.Distance + acc.Distance - djk) / 2 / float32(math.Sqrt(float64(p.Distance)*float64(acc.Distance)))
	return cos > pr.threshold
}

// selectDiverse walks cands in ascending distance order and appends to result every
// candidate other than center that is not occluded by an already accepted one,
// until r are accepted.
func (pr *pruner) selectDiverse(center uint32, cands, result []SimpleNeighbor) []SimpleNeighbor {
	for _, p := range cands {
		if len(result) >= pr.r {
			break
		}
		if p.ID == center {
			continue
		}
		occluded := false
		for _, acc := range result {
			if pr.occludes(p, acc) {
				occluded = true
				break
			}
		}
		if !occluded {
			result = append(result, p)
		}
	}
	return result
}

// prune sorts cands by distance to center and returns the diverse selection in scratch.
func (pr *pruner) prune(center uint32, cands, scratch []SimpleNeighbor) []SimpleNeighbor {
	slices.SortStableFunc(cands, func(a, b SimpleNeighbor) int { return cmp.Compare(a.Distance, b.Distance) })
	return pr.selectDiverse(center, cands, scratch[:0])
}

// syncPrune merges the existing out-edges of q into its local candidate pool, prunes,
// and writes the result into row. flags must already hold q and every pool id; the
// merged ids are added to it. The merged pool is returned for reuse.
func (pr *pruner) syncPrune(q uint32, adj [][]uint32, cands []SimpleNeighbor, flags *bitset.BitSet, scratch, row []SimpleNeighbor) []SimpleNeighbor {
	qv := pr.data.Row(int(q))
	for _, id := range adj[q] {
		if flags.Test(uint(id)) {
			continue
		}
		flags.Set(uint(id))
		cands = append(cands, SimpleNeighbor{ID: id, Distance: pr.dist.Compare(qv, pr.data.Row(int(id)))})
	}
	writeRow(row, pr.prune(q, cands, scratch))
	return cands
}

// writeRow stores result in row and marks every remaining slot empty.
func writeRow(row, result []SimpleNeighbor) {
	n := copy(row, result)
	for i := n; i < len(row); i++ {
		row[i] = SimpleNeighbor{Distance: sentinel}
	}
}

// rowLen returns the number of valid entries before the first sentinel.
func rowLen(row []SimpleNeighbor) int {
	for i, s := range row {
		if s.empty() {
			return i
		}
	}
	return len(row)
}
