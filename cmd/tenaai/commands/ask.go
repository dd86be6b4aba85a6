package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/pkg/cli"
	"github.com/kechemale/TenaAI/pkg/knowledge"
	"github.com/kechemale/TenaAI/pkg/rag"
)

var askTopK int

type askOutput struct {
	rag.Result `yaml:",inline"`

	Text string `json:"text" yaml:"text"`
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed guidelines",
	Long: `Retrieve the most relevant guideline chunks and answer from them only.

When nothing relevant is indexed the fixed no-information message is
printed and the LLM is not called. An LLM failure is reported in the
answer text and does not fail the command.`,
	Example: `  tenaai ask "What drug prevents postpartum hemorrhage?"
  tenaai ask -k 3 -o json "First-line malaria treatment?" --jq .text`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		ctx := cmd.Context()

		rt, err := openRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.load(ctx); err != nil {
			return err
		}

		res, err := rt.engine.Ask(ctx, question, askTopK)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if formatOutput == string(cli.FormatRaw) && jqFilter == "" {
			return cli.Output(res.Text(), cli.OutputOptions{Format: cli.FormatRaw, Writer: w})
		}
		return output(w, askOutput{Result: res, Text: res.Text()}, func() string {
			return answerPanel(res).Render(termWidth())
		})
	},
}

func answerPanel(res rag.Result) cli.Panel {
	p := cli.Panel{
		Styles:  cli.NewStyles(cli.DefaultTheme),
		Title:   "TenaAI",
		Status:  string(res.Status),
		Body:    res.Text(),
		Sources: sources(res.Hits),
		Footer:  fmt.Sprintf("session %s · %s", res.ID, cli.FormatDuration(res.Elapsed)),
	}
	switch res.Status {
	case rag.StatusNoContext:
		p.Tone = cli.ToneWarn
	case rag.StatusServiceFailed:
		p.Tone = cli.ToneError
	}
	return p
}

func sources(hits []knowledge.Hit) []cli.Source {
	out := make([]cli.Source, 0, len(hits))
	for _, h := range hits {
		out = append(out, cli.Source{Label: h.Chunk.ID, Score: h.Score, Text: h.Chunk.ContextText()})
	}
	return out
}

// termWidth reads $COLUMNS, defaulting to 100.
func termWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return 100
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default: engine top_k)")
	rootCmd.AddCommand(askCmd)
}
