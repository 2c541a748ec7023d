package ssg_test

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomMatrix(t *testing.T, n, dim int, seed uint64) *core.Matrix {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()
	}
	m, err := core.NewMatrix(data, n, dim)
	require.NoError(t, err)
	return m
}

func scenarioConfig() ssg.Config {
	cfg := ssg.DefaultConfig()
	cfg.L, cfg.R, cfg.Angle, cfg.NTry, cfg.LSearch = 40, 20, 60, 10, 100
	cfg.Seed = 1234
	return cfg
}

// buildGraph builds over n random vectors with an exact K=20 candidate graph.
func buildGraph(t *testing.T, n, dim int, cfg ssg.Config) (*core.Matrix, *ssg.Graph) {
	t.Helper()
	data := randomMatrix(t, n, dim, 99)
	knn, err := dataset.ExactKNNGraph(context.Background(), data, 20, core.SquaredL2{}, 0)
	require.NoError(t, err)

	b, err := ssg.NewBuilder(data, cfg)
	require.NoError(t, err)
	g, err := b.Build(context.Background(), knn)
	require.NoError(t, err)
	return data, g
}

func reachableFrom(t *testing.T, g *ssg.Graph, root uint32) int {
	t.Helper()
	flags := bitset.New(uint(g.Len()))
	flags.Set(uint(root))
	queue := []uint32{root}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		nbrs, err := g.Neighbors(q)
		require.NoError(t, err)
		for _, c := range nbrs {
			if !flags.Test(uint(c)) {
				flags.Set(uint(c))
				queue = append(queue, c)
			}
		}
	}
	return int(flags.Count())
}

func TestBuildScenario(t *testing.T) {
	// Arrange
	cfg := scenarioConfig()

	// Act
	data, g := buildGraph(t, 1000, 8, cfg)

	// Assert
	require.Equal(t, 1000, g.Len())
	for i := 0; i < g.Len(); i++ {
		nbrs, err := g.Neighbors(uint32(i))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(nbrs), cfg.R, "node %d", i)
		assert.NotContains(t, nbrs, uint32(i), "self loop at %d", i)
	}

	eps, err := g.EntryPoints()
	require.NoError(t, err)
	require.Len(t, eps, cfg.NTry)
	for _, ep := range eps {
		assert.Equal(t, g.Len(), reachableFrom(t, g, ep), "entry point %d", ep)
	}

	for i := 0; i < data.Rows; i++ {
		res, err := g.Search(data.Row(i), 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, i, res[0].ID, "query %d", i)
		assert.InDelta(t, 0, res[0].Distance, 1e-6)
	}

	ds, err := g.DegreeStats()
	require.NoError(t, err)
	assert.LessOrEqual(t, ds.Max, cfg.R)
	assert.Greater(t, ds.Mean, 1.0)
	width, err := g.Width()
	require.NoError(t, err)
	assert.Equal(t, uint32(cfg.R), width)
}

func TestBuildValidatesInput(t *testing.T) {
	_, err := ssg.NewBuilder(nil, ssg.DefaultConfig())
	assert.ErrorIs(t, err, ssg.ErrEmptyDataset)

	data := randomMatrix(t, 10, 2, 1)
	bad := ssg.DefaultConfig()
	bad.R = 0
	_, err = ssg.NewBuilder(data, bad)
	assert.ErrorIs(t, err, ssg.ErrInvalidConfig)

	b, err := ssg.NewBuilder(data, ssg.DefaultConfig())
	require.NoError(t, err)
	_, err = b.Build(context.Background(), make([][]uint32, 9))
	assert.ErrorIs(t, err, ssg.ErrGraphSizeMismatch)

	knn := make([][]uint32, 10)
	knn[3] = []uint32{10}
	_, err = b.Build(context.Background(), knn)
	assert.ErrorIs(t, err, ssg.ErrIDOutOfRange)
}

func TestBuildFromFile(t *testing.T) {
	data := randomMatrix(t, 200, 4, 3)
	knn, err := dataset.ExactKNNGraph(context.Background(), data, 10, core.SquaredL2{}, 2)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "graph.knng")
	require.NoError(t, dataset.SaveKNNGraphFile(path, knn))

	cfg := scenarioConfig()
	cfg.NNGraphPath = path
	b, err := ssg.NewBuilder(data, cfg)
	require.NoError(t, err)
	g, err := b.BuildFromFile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, g.Len())

	cfg.NNGraphPath = ""
	b, err = ssg.NewBuilder(data, cfg)
	require.NoError(t, err)
	_, err = b.BuildFromFile(context.Background())
	assert.ErrorIs(t, err, ssg.ErrInvalidConfig)
}

func TestBuildWithStrongConnect(t *testing.T) {
	data := randomMatrix(t, 300, 4, 17)
	knn, err := dataset.ExactKNNGraph(context.Background(), data, 10, core.SquaredL2{}, 0)
	require.NoError(t, err)
	b, err := ssg.NewBuilder(data, scenarioConfig())
	require.NoError(t, err)
	b.Connectivity = ssg.StrongConnect{}

	g, err := b.Build(context.Background(), knn)
	require.NoError(t, err)

	eps, err := g.EntryPoints()
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, g.Len(), reachableFrom(t, g, eps[0]))
}

func TestBuildSmallerThanEntryPointCount(t *testing.T) {
	data := randomMatrix(t, 5, 3, 2)
	knn, err := dataset.ExactKNNGraph(context.Background(), data, 4, core.SquaredL2{}, 0)
	require.NoError(t, err)
	b, err := ssg.NewBuilder(data, scenarioConfig())
	require.NoError(t, err)

	g, err := b.Build(context.Background(), knn)
	require.NoError(t, err)
	eps, err := g.EntryPoints()
	require.NoError(t, err)
	assert.Len(t, eps, 5)
}

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}
