package cmd

import (
	"errors"
	"fmt"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/patrikhermansson/ssg/example"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/spf13/cobra"
)

var (
	benchDataPath  string
	benchQueryPath string
	benchTruthPath string
	benchDir       string
	benchName      string
	benchCSVDir    string
	benchK         int
	benchQueries   int
	benchShow      int
	benchL         []int
	benchMetric    string
	benchIndex     indexFlags
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure recall and throughput of an index",
	Long: `Run the queries of a dataset against an index and report Recall@k, latency
and QPS. The dataset is read either from explicit --data/--queries files, from a
TEXMEX directory (--dir with --name, e.g. sift), or from a CSV directory. Without
--truth the exact neighbors are computed by brute force under --metric.
Pass several --L values to sweep the search pool size. Query threads come from
SSG_BENCH_NTRD.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchDataPath, "data", "", "Base vectors (.fvecs)")
	benchCmd.Flags().StringVar(&benchQueryPath, "queries", "", "Query vectors (.fvecs)")
	benchCmd.Flags().StringVar(&benchTruthPath, "truth", "", "Ground-truth neighbor ids (.ivecs)")
	benchCmd.Flags().StringVar(&benchDir, "dir", "", "TEXMEX dataset directory")
	benchCmd.Flags().StringVar(&benchName, "name", "sift", "TEXMEX dataset name")
	benchCmd.Flags().StringVar(&benchCSVDir, "csv", "", "Directory with train.csv, test.csv and neighbors.csv")
	benchCmd.Flags().IntVarP(&benchK, "k", "k", 10, "Neighbors per query")
	benchCmd.Flags().IntVar(&benchQueries, "queries-count", -1, "Number of queries to run (negative runs all with a progress bar)")
	benchCmd.Flags().IntVar(&benchShow, "show", 5, "Results printed per query when listing them")
	benchCmd.Flags().StringVar(&benchMetric, "metric", "squared_euclidean", "Metric for the exact ground truth computed when --truth is not given")
	benchCmd.Flags().IntSliceVar(&benchL, "L", nil, "Search pool sizes to evaluate (default L_search)")
	benchIndex.register(benchCmd)
}

// pooledIndex is implemented by both graph layouts.
type pooledIndex interface {
	core.Searcher
	SearchL(query []float32, k, l int) ([]core.Neighbor, ssg.SearchStats, error)
}

// pooledSearcher pins the search pool size of an index.
type pooledSearcher struct {
	index pooledIndex
	l     int
}

func (p pooledSearcher) Search(query []float32, k int) ([]core.Neighbor, error) {
	res, _, err := p.index.SearchL(query, k, p.l)
	return res, err
}

func (p pooledSearcher) Stats() core.IndexStats { return p.index.Stats() }

func loadBenchDataset() (*example.Dataset, error) {
	switch {
	case benchCSVDir != "":
		return example.LoadCSVDataset(benchCSVDir)
	case benchDir != "":
		return example.LoadTexmexDataset(benchDir, benchName)
	case benchDataPath != "" && benchQueryPath != "":
		base, err := dataset.LoadFvecs(benchDataPath)
		if err != nil {
			return nil, err
		}
		queries, err := dataset.LoadFvecs(benchQueryPath)
		if err != nil {
			return nil, err
		}
		ds := &example.Dataset{Train: base, Test: example.Rows(queries)}
		if benchTruthPath != "" {
			if ds.Neighbors, err = dataset.LoadIvecs(benchTruthPath); err != nil {
				return nil, err
			}
		}
		return ds, nil
	}
	return nil, errors.New("no dataset: pass --csv, --dir or --data with --queries")
}

func runBench(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ds, err := loadBenchDataset()
	if err != nil {
		return err
	}
	if normalize {
		ds.Normalize()
	}
	if len(ds.Neighbors) == 0 {
		if err := ds.ComputeGroundTruth(benchK, benchMetric); err != nil {
			return err
		}
	}
	if len(ds.Neighbors) < len(ds.Test) {
		return fmt.Errorf("ground truth covers %d of %d queries", len(ds.Neighbors), len(ds.Test))
	}
	searcher, _, err := benchIndex.open(cmd.Context(), ds.Train, cfg)
	if err != nil {
		return err
	}
	index, ok := searcher.(pooledIndex)
	if !ok {
		return fmt.Errorf("index %T does not support pool size selection", searcher)
	}

	pools := benchL
	if len(pools) == 0 {
		pools = []int{cfg.LSearch}
	}
	out := cmd.OutOrStdout()
	for _, l := range pools {
		fmt.Fprintf(out, "L_search=%d\n", l)
		report, err := example.RunBenchmark(out, pooledSearcher{index: index, l: l}, ds, benchK, benchQueries, benchShow)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "L_search=%d recall@%d=%.4f qps=%.1f\n", l, benchK, report.AvgRecall, report.QPS)
	}
	return nil
}
