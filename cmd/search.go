package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/patrikhermansson/ssg/example"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// indexFlags are shared by the commands that load a saved index.
type indexFlags struct {
	indexPath string
	compact   bool
	hashBits  int
	hashRatio float64
	hashPath  string
	hashSave  string
}

func (f *indexFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.indexPath, "index", "", "Index file written by ssg build")
	cmd.Flags().BoolVar(&f.compact, "compact", false, "Search the packed layout instead of adjacency lists")
	cmd.Flags().IntVar(&f.hashBits, "hash-bits", 0, "Guide search with a random projection hash of this many bits (0 disables)")
	cmd.Flags().Float64Var(&f.hashRatio, "hash-ratio", 0.5, "Share of each neighbor list scored when hashing")
	cmd.Flags().StringVar(&f.hashPath, "hash-file", "", "Load hash planes from this file instead of drawing them")
	cmd.Flags().StringVar(&f.hashSave, "hash-save", "", "Write the hash planes to this file")
	_ = cmd.MarkFlagRequired("index")
}

// open loads the index over data and applies the filter and layout options.
func (f *indexFlags) open(ctx context.Context, data *core.Matrix, cfg ssg.Config) (core.Searcher, batchSearcher, error) {
	g, err := ssg.LoadFile(f.indexPath, data, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	filter, err := f.filter(ctx, data, cfg)
	if err != nil {
		return nil, nil, err
	}
	if filter != nil {
		g.Filter = filter
	}
	if !f.compact {
		return g, g, nil
	}
	c, err := g.Compact()
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}

func (f *indexFlags) filter(ctx context.Context, data *core.Matrix, cfg ssg.Config) (*ssg.HashFilter, error) {
	var (
		h   *ssg.HashFilter
		err error
	)
	switch {
	case f.hashPath != "":
		file, openErr := os.Open(f.hashPath)
		if openErr != nil {
			return nil, fmt.Errorf("open hash function: %w", openErr)
		}
		defer file.Close()
		h, err = ssg.LoadHashFunction(ctx, file, data, f.hashRatio, cfg.Workers)
	case f.hashBits > 0:
		seed := cfg.Seed
		if seed == 0 {
			seed = core.GetSeed()
		}
		h, err = ssg.NewHashFilter(ctx, data, f.hashBits, f.hashRatio, seed, cfg.Workers)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("Hash guided search: %d bits, ratio %.2f", h.Bits(), h.Ratio)
	if f.hashSave != "" {
		out, err := os.Create(f.hashSave)
		if err != nil {
			return nil, fmt.Errorf("create hash function file: %w", err)
		}
		defer out.Close()
		if err := h.SaveHashFunction(out); err != nil {
			return nil, fmt.Errorf("write hash function: %w", err)
		}
	}
	return h, nil
}

type batchSearcher interface {
	BatchSearch(ctx context.Context, queries [][]float32, k, l int) ([][]core.Neighbor, ssg.SearchStats, error)
}

var (
	searchDataPath  string
	searchQueryPath string
	searchOutPath   string
	searchK         int
	searchL         int
	searchShow      int
	searchIndex     indexFlags
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Answer k-NN queries from an .fvecs file",
	Long: `Load an index, run every query of an .fvecs file and either print the
results or write the neighbor ids as .ivecs.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchDataPath, "data", "", "Base vectors the index was built over (.fvecs)")
	searchCmd.Flags().StringVar(&searchQueryPath, "queries", "", "Query vectors (.fvecs)")
	searchCmd.Flags().StringVarP(&searchOutPath, "out", "o", "", "Write neighbor ids to this .ivecs file")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 10, "Neighbors per query")
	searchCmd.Flags().IntVarP(&searchL, "L", "L", 0, "Candidate pool size (0 uses L_search)")
	searchCmd.Flags().IntVar(&searchShow, "show", 5, "Results printed per query when --out is not set")
	searchIndex.register(searchCmd)
	_ = searchCmd.MarkFlagRequired("data")
	_ = searchCmd.MarkFlagRequired("queries")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := loadVectors(searchDataPath)
	if err != nil {
		return err
	}
	queries, err := loadVectors(searchQueryPath)
	if err != nil {
		return err
	}
	_, index, err := searchIndex.open(cmd.Context(), data, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	results, stats, err := index.BatchSearch(cmd.Context(), example.Rows(queries), searchK, searchL)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	log.Info().
		Int("queries", queries.Rows).
		Int("distance_evals", stats.DistanceEvals).
		Int("expansions", stats.Expansions).
		Int("filtered", stats.Filtered).
		Msgf("Searched in %s", elapsed)

	if searchOutPath == "" {
		out := cmd.OutOrStdout()
		for i, res := range results {
			fmt.Fprintf(out, "Query %d: %s\n", i, example.FormatResults(res, searchShow))
		}
		fmt.Fprintf(out, "%d queries in %.3fs (%.1f QPS)\n", len(results), elapsed.Seconds(), float64(len(results))/elapsed.Seconds())
		return nil
	}

	ids := make([][]int, len(results))
	for i, res := range results {
		ids[i] = make([]int, len(res))
		for j, n := range res {
			ids[i][j] = n.ID
		}
	}
	f, err := os.Create(searchOutPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", searchOutPath, err)
	}
	if err := dataset.WriteIvecs(f, ids); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
