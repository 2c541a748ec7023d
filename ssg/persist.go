package ssg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/patrikhermansson/ssg/core"
	"github.com/rs/zerolog/log"
)

// Save writes the graph in little endian:
//
//	uint32 width | uint32 entry point count | entry ids | per node: uint32 degree, neighbor ids
func (g *Graph) Save(w io.Writer) error {
	if g.compacted {
		return ErrCompacted
	}
	bw := bufio.NewWriter(w)
	put := func(v uint32) error { return binary.Write(bw, binary.LittleEndian, v) }
	if err := put(g.width); err != nil {
		return err
	}
	if err := put(uint32(len(g.eps))); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, g.eps); err != nil {
		return err
	}
	for _, row := range g.adj {
		if err := put(uint32(len(row))); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile writes the graph to path.
func (g *Graph) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("save graph: %w", err)
	}
	return f.Close()
}

// Load reads a graph written by Save for the vectors in data. Nodes are read until
// the end of the stream; a partial last record is dropped and missing nodes get no
// edges, both with a warning. cfg supplies the search defaults. dist must be the
// metric the graph was built with, since the file does not record it; nil means
// core.SquaredL2.
func Load(r io.Reader, data *core.Matrix, cfg Config, dist core.Distance) (*Graph, error) {
	if data == nil || data.Rows == 0 {
		return nil, ErrEmptyDataset
	}
	n := data.Rows
	br := bufio.NewReader(r)
	var header [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read graph header: %w", err)
	}
	width, nEps := header[0], header[1]
	if int(nEps) > n {
		return nil, fmt.Errorf("%w: %d entry points for %d nodes", ErrGraphSizeMismatch, nEps, n)
	}
	eps := make([]uint32, nEps)
	if err := binary.Read(br, binary.LittleEndian, eps); err != nil {
		return nil, fmt.Errorf("read entry points: %w", err)
	}
	for _, ep := range eps {
		if int(ep) >= n {
			return nil, fmt.Errorf("%w: entry point %d", ErrIDOutOfRange, ep)
		}
	}

	adj := make([][]uint32, 0, n)
	total := 0
	for {
		var deg uint32
		err := binary.Read(br, binary.LittleEndian, &deg)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Warn().Msgf("Dropping partial degree field after node %d", len(adj))
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read node %d: %w", len(adj), err)
		}
		if len(adj) == n {
			return nil, fmt.Errorf("%w: more than %d nodes", ErrGraphSizeMismatch, n)
		}
		if int(deg) > n {
			return nil, fmt.Errorf("%w: node %d has degree %d", ErrGraphSizeMismatch, len(adj), deg)
		}
		row := make([]uint32, deg)
		if err := binary.Read(br, binary.LittleEndian, row); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Warn().Msgf("Dropping partial record of node %d", len(adj))
				break
			}
			return nil, fmt.Errorf("read node %d: %w", len(adj), err)
		}
		for _, id := range row {
			if int(id) >= n {
				return nil, fmt.Errorf("%w: node %d references %d", ErrIDOutOfRange, len(adj), id)
			}
		}
		adj = append(adj, row)
		total += len(row)
	}
	if len(adj) < n {
		log.Warn().Msgf("Graph holds %d of %d nodes, the rest have no edges", len(adj), n)
		for len(adj) < n {
			adj = append(adj, nil)
		}
	}
	log.Info().Msgf("Loaded graph with %d nodes, average degree %.2f", n, float64(total)/float64(n))

	if dist == nil {
		dist = core.SquaredL2{}
	}
	var root uint32
	if len(eps) > 0 {
		root = eps[0]
	}
	return &Graph{
		searchCore: searchCore{
			n:       n,
			dim:     data.Dim,
			eps:     eps,
			width:   width,
			lSearch: cfg.LSearch,
			seed:    cfg.seed(),
			workers: core.Workers(cfg.Workers),
		},
		data: data,
		dist: dist,
		adj:  adj,
		root: root,
	}, nil
}

// LoadFile reads a graph from path, like Load.
func LoadFile(path string, data *core.Matrix, cfg Config, dist core.Distance) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, data, cfg, dist)
}
