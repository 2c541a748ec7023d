package ssg_test

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := scenarioConfig()
	data, g := buildGraph(t, 300, 6, cfg)
	path := filepath.Join(t.TempDir(), "index.ssg")

	require.NoError(t, g.SaveFile(path))
	loaded, err := ssg.LoadFile(path, data, cfg, nil)
	require.NoError(t, err)

	wantEps, _ := g.EntryPoints()
	gotEps, err := loaded.EntryPoints()
	require.NoError(t, err)
	assert.Equal(t, wantEps, gotEps)

	wantWidth, _ := g.Width()
	gotWidth, _ := loaded.Width()
	assert.Equal(t, wantWidth, gotWidth)

	for i := 0; i < g.Len(); i++ {
		want, _ := g.Neighbors(uint32(i))
		got, err := loaded.Neighbors(uint32(i))
		require.NoError(t, err)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got, "node %d", i)
	}

	q := data.Row(17)
	a, err := g.Search(q, 5)
	require.NoError(t, err)
	b, err := loaded.Search(q, 5)
	require.NoError(t, err)
	assert.Equal(t, ids(a), ids(b))
}

func encodeGraph(width uint32, eps []uint32, rows [][]uint32) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, width)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(eps)))
	_ = binary.Write(&buf, binary.LittleEndian, eps)
	for _, r := range rows {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(r)))
		_ = binary.Write(&buf, binary.LittleEndian, r)
	}
	return buf.Bytes()
}

// doubledL2 ranks like squared L2 but reports twice the value.
type doubledL2 struct{}

func (doubledL2) Compare(a, b []float32) float32 { return 2 * core.SquaredL2{}.Compare(a, b) }
func (doubledL2) Norm(v []float32) float32       { return core.SquaredL2{}.Norm(v) }

func TestLoadUsesGivenDistance(t *testing.T) {
	cfg := scenarioConfig()
	data, g := buildGraph(t, 200, 4, cfg)
	var buf bytes.Buffer
	require.NoError(t, g.Save(&buf))
	raw := buf.Bytes()

	plain, err := ssg.Load(bytes.NewReader(raw), data, cfg, nil)
	require.NoError(t, err)
	doubled, err := ssg.Load(bytes.NewReader(raw), data, cfg, doubledL2{})
	require.NoError(t, err)
	assert.Contains(t, doubled.Stats().Distance, "doubledL2")
	assert.Contains(t, plain.Stats().Distance, "SquaredL2")

	q := data.Row(3)
	want, err := plain.Search(q, 5)
	require.NoError(t, err)
	got, err := doubled.Search(q, 5)
	require.NoError(t, err)
	require.Equal(t, ids(want), ids(got))
	for i := range got {
		assert.InDelta(t, 2*want[i].Distance, got[i].Distance, 1e-5)
	}

	// The packed layout needs a norm based metric.
	_, err = doubled.Compact()
	assert.ErrorIs(t, err, ssg.ErrUnsupportedDistance)
}

func TestLoadTruncatedRecord(t *testing.T) {
	data := randomMatrix(t, 4, 2, 1)
	raw := encodeGraph(3, []uint32{0}, [][]uint32{{1, 2}, {0, 3}, {1}, {2, 0}})
	// Cut into the middle of the last node's ids.
	raw = raw[:len(raw)-3]

	g, err := ssg.Load(bytes.NewReader(raw), data, ssg.DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())

	n2, _ := g.Neighbors(2)
	assert.Equal(t, []uint32{1}, n2)
	n3, _ := g.Neighbors(3)
	assert.Empty(t, n3, "partial record is dropped")
}

func TestLoadRejectsBadGraphs(t *testing.T) {
	data := randomMatrix(t, 3, 2, 1)

	_, err := ssg.Load(bytes.NewReader(encodeGraph(2, []uint32{5}, nil)), data, ssg.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ssg.ErrIDOutOfRange)

	_, err = ssg.Load(bytes.NewReader(encodeGraph(2, nil, [][]uint32{{1}, {7}, {0}})), data, ssg.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ssg.ErrIDOutOfRange)

	_, err = ssg.Load(bytes.NewReader(encodeGraph(2, nil, [][]uint32{{1}, {2}, {0}, {1}})), data, ssg.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ssg.ErrGraphSizeMismatch)

	_, err = ssg.Load(bytes.NewReader([]byte{1, 0}), data, ssg.DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = ssg.Load(bytes.NewReader(nil), nil, ssg.DefaultConfig(), nil)
	assert.ErrorIs(t, err, ssg.ErrEmptyDataset)
}

func TestSaveCompactedFails(t *testing.T) {
	_, g := buildGraph(t, 50, 2, scenarioConfig())
	_, err := g.Compact()
	require.NoError(t, err)
	assert.ErrorIs(t, g.Save(&bytes.Buffer{}), ssg.ErrCompacted)
}
