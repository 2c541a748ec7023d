package cmd

import (
	"fmt"
	"time"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	knnDataPath string
	knnK        int
	knnOutPath  string
	knnWorkers  int
)

var knnCmd = &cobra.Command{
	Use:   "knn",
	Short: "Compute an exact k-NN candidate graph",
	Long: `Compute the exact k nearest neighbors of every base vector by brute force and
write them in the candidate graph format read by "ssg build". The cost is
quadratic in the number of vectors, so this is meant for small datasets and tests.`,
	Args: cobra.NoArgs,
	RunE: runKNN,
}

func init() {
	rootCmd.AddCommand(knnCmd)

	knnCmd.Flags().StringVar(&knnDataPath, "data", "", "Base vectors (.fvecs)")
	knnCmd.Flags().IntVarP(&knnK, "k", "k", 50, "Neighbors per node")
	knnCmd.Flags().StringVarP(&knnOutPath, "out", "o", "", "Output graph file")
	knnCmd.Flags().IntVar(&knnWorkers, "workers", 0, "Worker goroutines (0 means one per CPU)")
	_ = knnCmd.MarkFlagRequired("data")
	_ = knnCmd.MarkFlagRequired("out")
}

func runKNN(cmd *cobra.Command, _ []string) error {
	data, err := loadVectors(knnDataPath)
	if err != nil {
		return err
	}
	start := time.Now()
	graph, err := dataset.ExactKNNGraph(cmd.Context(), data, knnK, core.SquaredL2{}, knnWorkers)
	if err != nil {
		return err
	}
	log.Info().Msgf("Computed %d-NN graph over %d vectors in %s", knnK, data.Rows, time.Since(start))
	if err := dataset.SaveKNNGraphFile(knnOutPath, graph); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", knnOutPath)
	return nil
}
