package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the embedding cache",
	Long: `The embedding cache stores chunk and query vectors on disk (badger)
under cache_dir, keyed by embedding model and text hash, so rebuilding an
unchanged corpus does not call the embedding service again.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached vectors of the configured embedding model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.cache == nil {
			return fmt.Errorf("no cache_dir configured")
		}
		n, err := rt.cache.Purge(ctx)
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached vectors (model %s).\n", n, rt.cache.Model())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
