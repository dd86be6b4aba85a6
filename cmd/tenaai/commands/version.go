package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/cmd/tenaai/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output(cmd.OutOrStdout(), build.Get(), func() string {
			s := build.String()
			if IsVerbose() {
				s += fmt.Sprintf("\n  go:     %s", build.Get().Go)
				if cfg, err := GetConfig(); err == nil {
					s += fmt.Sprintf("\n  config: %s", cfg.Dir)
				} else {
					s += fmt.Sprintf("\n  config: (unavailable: %v)", err)
				}
			}
			return s
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
