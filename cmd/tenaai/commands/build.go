package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/pkg/chunk"
	"github.com/kechemale/TenaAI/pkg/cli"
	"github.com/kechemale/TenaAI/pkg/knowledge"
)

var buildChunks string

type buildSummary struct {
	knowledge.Info `yaml:",inline"`

	Elapsed     string `json:"elapsed" yaml:"elapsed"`
	CacheHits   int64  `json:"cache_hits,omitempty" yaml:"cache_hits,omitempty"`
	CacheMisses int64  `json:"cache_misses,omitempty" yaml:"cache_misses,omitempty"`
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and persist the index from chunk files",
	Long: `Embed pre-chunked guideline text and persist the index snapshot.

--chunks accepts a .jsonl, .json, .yaml or .yml file, or a directory of
such files. Each record is {"id", "text", "metadata"}; missing ids are
generated from the file name.

Any existing snapshot at the persist location is replaced.`,
	Example: `  tenaai build --chunks ./chunks
  tenaai build --chunks malaria.jsonl --persist-dir ./vector_store`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildChunks == "" {
			return fmt.Errorf("--chunks is required")
		}
		chunks, err := chunk.Load(buildChunks)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		start := time.Now()
		if err := rt.store.Build(ctx, chunks); err != nil {
			return err
		}
		if err := rt.store.Persist(ctx); err != nil {
			return err
		}

		sum := buildSummary{Info: rt.store.Info(), Elapsed: cli.FormatDuration(time.Since(start))}
		if rt.cache != nil {
			sum.CacheHits, sum.CacheMisses = rt.cache.Stats()
		}
		return output(cmd.OutOrStdout(), sum, func() string {
			return fmt.Sprintf("✓ Indexed %d chunks (dim %d, %s) to %s in %s",
				sum.Chunks, sum.Dim, sum.IndexKind, sum.Location, sum.Elapsed)
		})
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildChunks, "chunks", "", "chunk file or directory")
	rootCmd.AddCommand(buildCmd)
}
