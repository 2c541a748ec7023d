// Package cmd implements the ssg command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/patrikhermansson/ssg/core"
	"github.com/patrikhermansson/ssg/dataset"
	"github.com/patrikhermansson/ssg/example"
	"github.com/patrikhermansson/ssg/ssg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	paramPairs []string
	normalize  bool
)

var rootCmd = &cobra.Command{
	Use:   "ssg",
	Short: "Build and query satellite system graph indexes",
	Long: `ssg builds a navigable proximity graph from a dataset and a candidate
k-NN graph, and answers approximate nearest neighbor queries on it.

Examples:
  ssg knn --data sift_base.fvecs --k 50 --out sift.knng
  ssg build --data sift_base.fvecs --knn sift.knng --out sift.ssg --param A=60
  ssg search --data sift_base.fvecs --index sift.ssg --queries sift_query.fvecs --k 10
  ssg bench --dir ./sift --name sift --index sift.ssg --k 100 --compact`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file with build and search parameters")
	rootCmd.PersistentFlags().StringArrayVar(&paramPairs, "param", nil, "Override one parameter, as key=value (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&normalize, "normalize", false, "Scale base and query vectors to unit length (cosine and angular datasets)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands pass to long
// running builds and searches.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig merges the config file and --param overrides on top of the defaults.
func loadConfig() (ssg.Config, error) {
	cfg := ssg.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = ssg.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	for _, kv := range paramPairs {
		if err := cfg.SetPair(kv); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	log.Debug().Interface("config", cfg).Msg("Parameters")
	return cfg, nil
}

// loadVectors reads an .fvecs file, normalized when --normalize is set. Every
// command must see the same vectors the index was built from.
func loadVectors(path string) (*core.Matrix, error) {
	m, err := dataset.LoadFvecs(path)
	if err != nil {
		return nil, err
	}
	if normalize {
		core.NormalizeBatch(example.Rows(m))
	}
	return m, nil
}
