package example

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/rs/zerolog/log"
)

// DefaultCandidateK is the candidate graph degree used when no k-NN graph file is supplied.
const DefaultCandidateK = 50

// BuildIndex builds a graph over ds.Train. The candidate graph is read from
// cfg.NNGraphPath when that file exists, otherwise it is computed exactly with
// DefaultCandidateK neighbors, which is only practical for small datasets.
func BuildIndex(ctx context.Context, ds *Dataset, cfg ssg.Config) (*ssg.Graph, error) {
	start := time.Now()
	b, err := ssg.NewBuilder(ds.Train, cfg)
	if err != nil {
		return nil, err
	}

	var knn [][]uint32
	if _, statErr := os.Stat(cfg.NNGraphPath); cfg.NNGraphPath != "" && statErr == nil {
		knn, err = dataset.LoadKNNGraph(cfg.NNGraphPath)
	} else {
		log.Info().Msgf("No candidate graph file, computing exact %d-NN graph", DefaultCandidateK)
		knn, err = dataset.ExactKNNGraph(ctx, ds.Train, DefaultCandidateK, core.SquaredL2{}, cfg.Workers)
	}
	if err != nil {
		return nil, fmt.Errorf("candidate graph: %w", err)
	}

	g, err := b.Build(ctx, knn)
	if err != nil {
		return nil, err
	}
	stats := g.Stats()
	fmt.Printf("Indexed %d vectors (%d dimensions) in %.2fs; distance: %s\n",
		stats.Count, stats.Dimension, time.Since(start).Seconds(), stats.Distance)
	return g, nil
}
