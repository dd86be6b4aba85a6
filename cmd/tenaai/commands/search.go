package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/pkg/cli"
	"github.com/kechemale/TenaAI/pkg/knowledge"
)

var searchTopK int

type searchOutput struct {
	Query string          `json:"query" yaml:"query"`
	Hits  []knowledge.Hit `json:"hits" yaml:"hits"`
	Total int             `json:"total" yaml:"total"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the nearest guideline chunks without calling the LLM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		ctx := cmd.Context()

		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.load(ctx); err != nil {
			return err
		}

		k := searchTopK
		if k <= 0 {
			k = rt.cfg.TopK
		}
		hits, err := rt.store.Query(ctx, query, k)
		if err != nil {
			return err
		}

		out := searchOutput{Query: query, Hits: hits, Total: len(hits)}
		return output(cmd.OutOrStdout(), out, func() string {
			p := cli.Panel{
				Styles:  cli.NewStyles(cli.DefaultTheme),
				Title:   "Search",
				Status:  fmt.Sprintf("%d hits", len(hits)),
				Body:    query,
				Sources: sources(hits),
			}
			return p.Render(termWidth())
		})
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of chunks to return (default: engine top_k)")
	rootCmd.AddCommand(searchCmd)
}
