package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/cmd/tenaai/internal/config"
	"github.com/kechemale/TenaAI/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	contextName  string
	formatOutput string
	jqFilter     string
	persistDir   string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tenaai",
	Short: "Question answering over clinical guidelines",
	Long: `tenaai - retrieval-augmented answers from official clinical guidelines.

Answers come only from the indexed guideline text. When nothing relevant is
indexed, tenaai says so instead of answering from general knowledge.

Configuration is stored in the OS config directory (or $TENAAI_CONFIG_DIR):
  macOS:   ~/Library/Application Support/tenaai/
  Linux:   ~/.config/tenaai/
  Windows: %AppData%/tenaai/

A .env file in the working directory is loaded at startup.

Examples:
  # Configure a context
  tenaai config add-context local
  tenaai config use-context local
  tenaai config set local engine api_key '$DEEPSEEK_API_KEY'

  # Build the index from pre-chunked guideline files, then ask
  tenaai build --chunks ./chunks
  tenaai ask "What drug prevents postpartum hemorrhage?"

  # Serve the HTTP API
  tenaai serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		setupLogging(os.Stderr)
		_, err := cli.ParseFormat(formatOutput)
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&contextName, "context", "c", "", "config context (default: current context)")
	pf.StringVarP(&formatOutput, "format", "o", "text", "output format: text, yaml, json, raw")
	pf.StringVar(&jqFilter, "jq", "", "jq filter applied to structured output")
	pf.StringVar(&persistDir, "persist-dir", "", "snapshot directory or S3 prefix (overrides engine.yaml)")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Commands that need config report it via GetConfig; version does not.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

func setupLogging(w io.Writer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// output writes v in the selected format. styled renders the text format;
// nil falls back to YAML.
func output(w io.Writer, v any, styled func() string) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	if format == cli.FormatText && jqFilter == "" && styled != nil {
		_, err := fmt.Fprintln(w, styled())
		return err
	}
	return cli.Output(v, cli.OutputOptions{Format: format, JQ: jqFilter, Writer: w})
}
