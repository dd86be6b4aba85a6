package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/pkg/cli"
	"github.com/kechemale/TenaAI/pkg/knowledge"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted index snapshot",
	Long: `Load the snapshot at the persist location and report its size,
dimension, index kind and embedding model. A missing snapshot is reported
as loaded: false; a corrupt one is an error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.store.Load(ctx); err != nil && !errors.Is(err, knowledge.ErrNotFound) {
			return err
		}
		info := rt.store.Info()
		return output(cmd.OutOrStdout(), info, func() string {
			return describeSnapshot(info)
		})
	},
}

func describeSnapshot(info knowledge.Info) string {
	if !info.Loaded {
		return fmt.Sprintf("No snapshot at %s.\nRun 'tenaai build --chunks <path>' to create one.", info.Location)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Snapshot: %s\n", info.Location)
	fmt.Fprintf(&b, "  chunks:  %d\n", info.Chunks)
	fmt.Fprintf(&b, "  index:   %s, dim %d, %s of vectors\n",
		info.IndexKind, info.Dim, cli.FormatBytes(int64(info.Chunks)*int64(info.Dim)*4))
	fmt.Fprintf(&b, "  model:   %s", info.EmbeddingModel)
	if !info.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "\n  built:   %s", info.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
