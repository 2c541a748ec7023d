package cmd

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/patrikhermansson/ssg/example"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func writeMatrix(t *testing.T, path string, n, dim int, seed uint64) *core.Matrix {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()
	}
	m, err := core.NewMatrix(data, n, dim)
	require.NoError(t, err)
	require.NoError(t, dataset.SaveFvecsFile(path, m))
	return m
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, Execute(), out.String())
	return out.String()
}

func TestCommandsAreRegistered(t *testing.T) {
	for _, name := range []string{"build", "search", "bench", "knn"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("param"))

	l := searchCmd.Flags().Lookup("L")
	require.NotNil(t, l)
	assert.Equal(t, "0", l.DefValue)
	assert.NotNil(t, benchCmd.Flags().Lookup("hash-bits"))
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.fvecs")
	queryPath := filepath.Join(dir, "query.fvecs")
	knnPath := filepath.Join(dir, "base.knng")
	indexPath := filepath.Join(dir, "base.ssg")
	resultPath := filepath.Join(dir, "result.ivecs")
	truthPath := filepath.Join(dir, "truth.ivecs")
	hashPath := filepath.Join(dir, "hash.bin")

	base := writeMatrix(t, basePath, 300, 8, 3)
	queries := writeMatrix(t, queryPath, 20, 8, 4)

	run(t, "knn", "--data", basePath, "--k", "20", "--out", knnPath)
	knn, err := dataset.LoadKNNGraph(knnPath)
	require.NoError(t, err)
	require.Len(t, knn, 300)

	out := run(t, "build", "--data", basePath, "--knn", knnPath, "--out", indexPath,
		"--param", "L=40", "--param", "R=20", "--param", "seed=7")
	assert.Contains(t, out, "Built graph over 300 vectors")

	run(t, "search", "--data", basePath, "--index", indexPath, "--queries", queryPath,
		"--k", "10", "--out", resultPath, "--hash-bits", "16", "--hash-ratio", "1", "--hash-save", hashPath)
	ids, err := dataset.LoadIvecs(resultPath)
	require.NoError(t, err)
	require.Len(t, ids, 20)
	for _, row := range ids {
		assert.Len(t, row, 10)
	}
	_, err = os.Stat(hashPath)
	require.NoError(t, err)

	truth, _ := example.GroundTruth(base, example.Rows(queries), 10, core.SquaredEuclidean)
	f, err := os.Create(truthPath)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteIvecs(f, truth))
	require.NoError(t, f.Close())

	out = run(t, "bench", "--data", basePath, "--queries", queryPath, "--truth", truthPath,
		"--index", indexPath, "--k", "10", "--L", "20", "--L", "100", "--queries-count", "3",
		"--compact", "--hash-file", hashPath, "--hash-ratio", "1")
	assert.Contains(t, out, "L_search=20 recall@10=")
	assert.Contains(t, out, "L_search=100 recall@10=")
	assert.Contains(t, out, "Query #3:")
}

func TestBuildRequiresCandidateGraph(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.fvecs")
	writeMatrix(t, basePath, 10, 4, 5)

	saved := buildKNNPath
	buildKNNPath = ""
	defer func() { buildKNNPath = saved }()

	rootCmd.SetArgs([]string{"build", "--data", basePath, "--out", filepath.Join(dir, "x.ssg")})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, Execute())
}

func TestLoadVectorsNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.fvecs")
	writeMatrix(t, path, 20, 5, 8)

	defer func() { normalize = false }()
	normalize = true
	m, err := loadVectors(path)
	require.NoError(t, err)
	for _, v := range example.Rows(m) {
		assert.InDelta(t, 1, core.SquaredEuclidean(v, make([]float32, len(v))), 1e-5)
	}
}

func TestBenchNormalizedWithComputedTruth(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.fvecs")
	queryPath := filepath.Join(dir, "query.fvecs")
	knnPath := filepath.Join(dir, "base.knng")
	indexPath := filepath.Join(dir, "base.ssg")
	writeMatrix(t, basePath, 300, 8, 11)
	writeMatrix(t, queryPath, 10, 8, 12)

	savedTruth, savedIndex := benchTruthPath, benchIndex
	defer func() {
		normalize = false
		benchTruthPath, benchIndex = savedTruth, savedIndex
	}()
	benchTruthPath, benchL = "", nil
	benchIndex = indexFlags{hashRatio: 0.5}

	run(t, "knn", "--normalize", "--data", basePath, "--k", "20", "--out", knnPath)
	run(t, "build", "--normalize", "--data", basePath, "--knn", knnPath, "--out", indexPath)
	out := run(t, "bench", "--normalize", "--data", basePath, "--queries", queryPath,
		"--index", indexPath, "--metric", "angular", "--k", "10", "--L", "100", "--queries-count=-1")

	m := regexp.MustCompile(`recall@10=([0-9.]+)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	recall, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, recall, 0.9)
}

func TestBenchRejectsUnknownMetric(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.fvecs")
	writeMatrix(t, basePath, 10, 4, 13)

	savedTruth := benchTruthPath
	defer func() { benchTruthPath = savedTruth; benchMetric = "squared_euclidean" }()
	benchTruthPath = ""

	rootCmd.SetArgs([]string{"bench", "--data", basePath, "--queries", basePath,
		"--index", filepath.Join(dir, "missing.ssg"), "--metric", "chebyshev"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}
