package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/kechemale/TenaAI/cmd/tenaai/internal/config"
	"github.com/kechemale/TenaAI/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts and service configurations.

A context is a named directory holding per-service YAML config files.
The query engine reads engine.yaml; keys are persist_dir, storage,
s3_bucket, s3_prefix, s3_region, s3_endpoint, index, embedding_provider,
embedding_model, embedding_api_key, embedding_base_url, embedding_dim,
cache_dir, llm_provider, llm_model, llm_base_url, api_key, temperature,
top_k and timeout. Values starting with '$' are read from the environment.

Examples:
  tenaai config list-contexts
  tenaai config add-context prod
  tenaai config use-context prod
  tenaai config set prod engine api_key '$DEEPSEEK_API_KEY'
  tenaai config set prod engine top_k 5
  tenaai config get prod engine top_k
  tenaai config show`,
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names, err := cfg.ListContexts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: tenaai config add-context <name>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVICES")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			services, _ := config.ListServices(cfg.ContextDir(name))
			fmt.Fprintf(w, "%s\t%s\t%s\n", current, name, strings.Join(services, ", "))
		}
		return w.Flush()
	},
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]
		if err := cfg.AddContext(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q created.\n", name)
		fmt.Fprintf(cmd.OutOrStdout(), "Configure it with: tenaai config set %s engine <key> <value>\n", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context and all its service configs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <context> <service> <key> <value>",
	Short: "Set a service config value",
	Long: `Set a key-value pair in a service's YAML config file.

Values are parsed as YAML scalars, so numbers stay numbers. Keys of the
engine service are checked against the known settings.

Examples:
  tenaai config set prod engine api_key '$DEEPSEEK_API_KEY'
  tenaai config set prod engine embedding_provider openai
  tenaai config set prod engine temperature 0.1`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, service, key, value := args[0], args[1], args[2], args[3]
		if err := config.ValidateServiceName(service); err != nil {
			return err
		}
		contextDir, err := cfg.ResolveContext(ctxName)
		if err != nil {
			return err
		}

		m := map[string]any{}
		existing, err := config.LoadService[map[string]any](contextDir, service)
		switch {
		case err == nil && *existing != nil:
			m = *existing
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return err
		}
		m[key] = parseScalar(value)

		if service == config.EngineService {
			if err := checkEngine(m); err != nil {
				return err
			}
		}
		if err := config.SaveService(contextDir, service, &m); err != nil {
			return err
		}

		shown := value
		if isSecretKey(key) {
			shown = cli.MaskAPIKey(value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.%s = %s (context: %s)\n", service, key, shown, ctxName)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <context> <service> <key>",
	Short: "Get a service config value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, service, key := args[0], args[1], args[2]
		contextDir, err := cfg.ResolveContext(ctxName)
		if err != nil {
			return err
		}
		m, err := config.LoadService[map[string]any](contextDir, service)
		if err != nil {
			return err
		}
		if *m == nil {
			return fmt.Errorf("key %q not found in %s config (file is empty)", key, service)
		}
		val, ok := (*m)[key]
		if !ok {
			return fmt.Errorf("key %q not found in %s config", key, service)
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [context]",
	Short: "Show the effective engine settings",
	Long: `Show engine.yaml of a context (default: --context or the current
context) after environment overrides and defaults. Secrets are masked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			contextName = args[0]
		}
		e, err := loadEngineConfig()
		if err != nil {
			return err
		}
		e.APIKey = cli.MaskAPIKey(e.APIKey)
		e.EmbeddingAPIKey = cli.MaskAPIKey(e.EmbeddingAPIKey)
		e.S3AccessKeyID = cli.MaskAPIKey(e.S3AccessKeyID)
		e.S3SecretAccessKey = cli.MaskAPIKey(e.S3SecretAccessKey)
		return output(cmd.OutOrStdout(), e, nil)
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit <context> <service>",
	Short: "Open a service config in the default editor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, service := args[0], args[1]
		if err := config.ValidateServiceName(service); err != nil {
			return err
		}
		if _, err := cfg.ResolveContext(ctxName); err != nil {
			return err
		}
		path := cfg.ServicePath(ctxName, service)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte("# "+service+" configuration\n"), 0600); err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		c := exec.Command(editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

// parseScalar reads value as a YAML scalar; anything that is not a plain
// scalar stays a string.
func parseScalar(value string) any {
	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return value
	}
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return v
	}
	return value
}

// checkEngine rejects unknown keys and mistyped values before engine.yaml
// is written.
func checkEngine(m map[string]any) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	var e config.Engine
	if err := yaml.UnmarshalWithOptions(data, &e, yaml.Strict()); err != nil {
		return fmt.Errorf("invalid engine setting: %w", err)
	}
	return nil
}

func isSecretKey(key string) bool {
	return strings.Contains(key, "key") || strings.Contains(key, "secret")
}

func init() {
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)

	rootCmd.AddCommand(configCmd)
}
