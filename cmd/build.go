package cmd

import (
	"fmt"
	"time"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	buildDataPath      string
	buildKNNPath       string
	buildOutPath       string
	buildStrongConnect bool
	buildProgress      bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a graph index from base vectors and a candidate graph",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildDataPath, "data", "", "Base vectors (.fvecs)")
	buildCmd.Flags().StringVar(&buildKNNPath, "knn", "", "Candidate k-NN graph (overrides nn_graph_path)")
	buildCmd.Flags().StringVarP(&buildOutPath, "out", "o", "", "Output index file")
	buildCmd.Flags().BoolVar(&buildStrongConnect, "strong-connect", false, "Repair connectivity with back edges instead of DFS expansion; out-degrees may then exceed R")
	buildCmd.Flags().BoolVar(&buildProgress, "progress", false, "Show progress bars while linking")
	_ = buildCmd.MarkFlagRequired("data")
	_ = buildCmd.MarkFlagRequired("out")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if buildKNNPath != "" {
		cfg.NNGraphPath = buildKNNPath
	}
	if cfg.NNGraphPath == "" {
		return fmt.Errorf("no candidate graph: pass --knn or set %s", ssg.KeyNNGraphPath)
	}
	cfg.ShowProgress = cfg.ShowProgress || buildProgress

	log.Debug().Msgf("CPU features: %s", core.SIMDSummary())
	data, err := loadVectors(buildDataPath)
	if err != nil {
		return err
	}
	b, err := ssg.NewBuilder(data, cfg)
	if err != nil {
		return err
	}
	if buildStrongConnect {
		b.Connectivity = ssg.StrongConnect{}
	}

	start := time.Now()
	g, err := b.BuildFromFile(cmd.Context())
	if err != nil {
		return err
	}
	ds, err := g.DegreeStats()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Built graph over %d vectors in %.2fs: degree min %d, max %d, mean %.2f, %d entry points\n",
		g.Len(), time.Since(start).Seconds(), ds.Min, ds.Max, ds.Mean, g.Stats().EntryPoints)

	return g.SaveFile(buildOutPath)
}
