package dataset_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFvecsRoundTrip(t *testing.T) {
	m, err := core.NewMatrix([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dataset.WriteFvecs(&buf, m))
	path := writeFile(t, "base.fvecs", buf.Bytes())

	got, err := dataset.LoadFvecs(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, 3, got.Dim)
	assert.Equal(t, m.Data, got.Data)
}

func TestFvecsDropsPartialRecord(t *testing.T) {
	m, err := core.NewMatrix([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dataset.WriteFvecs(&buf, m))
	data := append(buf.Bytes(), 2, 0, 0, 0, 9)
	path := writeFile(t, "trunc.fvecs", data)

	got, err := dataset.LoadFvecs(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rows)
}

func TestFvecsEmpty(t *testing.T) {
	path := writeFile(t, "empty.fvecs", nil)
	_, err := dataset.LoadFvecs(path)
	assert.ErrorIs(t, err, dataset.ErrEmptyFile)
}

func TestIvecsRoundTrip(t *testing.T) {
	rows := [][]int{{3, 1, 2}, {0, 5, 4}}
	var buf bytes.Buffer
	require.NoError(t, dataset.WriteIvecs(&buf, rows))
	path := writeFile(t, "gt.ivecs", buf.Bytes())

	got, err := dataset.LoadIvecs(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestKNNGraphRoundTrip(t *testing.T) {
	graph := [][]uint32{{1, 2}, {0, 2}, {1, 0}}
	var buf bytes.Buffer
	require.NoError(t, dataset.WriteKNNGraph(&buf, graph))
	assert.Equal(t, 3*3*4, buf.Len())
	path := writeFile(t, "g.knng", buf.Bytes())

	got, err := dataset.LoadKNNGraph(path)
	require.NoError(t, err)
	assert.Equal(t, graph, got)
}

func TestKNNGraphTruncated(t *testing.T) {
	graph := [][]uint32{{1, 2}, {0, 2}, {1, 0}}
	var buf bytes.Buffer
	require.NoError(t, dataset.WriteKNNGraph(&buf, graph))
	data := buf.Bytes()[:buf.Len()-5]
	path := writeFile(t, "t.knng", data)

	got, err := dataset.LoadKNNGraph(path)
	require.NoError(t, err)
	assert.Equal(t, graph[:2], got)
}

func TestKNNGraphRagged(t *testing.T) {
	var buf bytes.Buffer
	err := dataset.WriteKNNGraph(&buf, [][]uint32{{1, 2}, {0}})
	assert.ErrorIs(t, err, dataset.ErrRaggedGraph)
}

func TestExactKNNGraph(t *testing.T) {
	// Points on a line: 0, 1, 3, 7.
	m, err := core.NewMatrix([]float32{0, 1, 3, 7}, 4, 1)
	require.NoError(t, err)

	graph, err := dataset.ExactKNNGraph(context.Background(), m, 2, core.SquaredL2{}, 2)
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2}, graph[0])
	assert.Equal(t, []uint32{0, 2}, graph[1])
	assert.Equal(t, []uint32{1, 0}, graph[2])
	assert.Equal(t, []uint32{2, 1}, graph[3])
}

func TestExactKNNGraphCapsK(t *testing.T) {
	m, err := core.NewMatrix([]float32{0, 1, 3}, 3, 1)
	require.NoError(t, err)

	graph, err := dataset.ExactKNNGraph(context.Background(), m, 10, core.SquaredL2{}, 1)
	require.NoError(t, err)
	for i, row := range graph {
		assert.Len(t, row, 2, "row %d", i)
		assert.NotContains(t, row, uint32(i))
	}
}
