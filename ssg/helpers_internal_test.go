package ssg

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/stretchr/testify/require"
)

func randomMatrix(t *testing.T, n, dim int, seed uint64) *core.Matrix {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()
	}
	m, err := core.NewMatrix(data, n, dim)
	require.NoError(t, err)
	return m
}

func newTestState(t *testing.T, data *core.Matrix, knn [][]uint32, cfg Config) *buildState {
	t.Helper()
	return &buildState{
		pruner:  pruner{data: data, dist: core.SquaredL2{}, r: cfg.R, threshold: cfg.threshold()},
		cfg:     cfg,
		n:       data.Rows,
		knn:     knn,
		edges:   newEdgeBuffer(data.Rows, cfg.R, cfg.LockShards),
		workers: 4,
		rng:     newRand(42),
	}
}

func exactKNN(t *testing.T, data *core.Matrix, k int) [][]uint32 {
	t.Helper()
	knn, err := dataset.ExactKNNGraph(context.Background(), data, k, core.SquaredL2{}, 4)
	require.NoError(t, err)
	return knn
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.L, cfg.R, cfg.Angle, cfg.NTry, cfg.LSearch = 40, 20, 60, 10, 100
	cfg.Seed = 7
	cfg.Workers = 4
	return cfg
}
