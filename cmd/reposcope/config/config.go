// Package configcmder provides the config command for managing persistent
// reposcope configuration stored in the .reposcope/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/config"
)

const configLongDesc string = `Manage persistent reposcope configuration.

Configuration is stored as config.toml in the .reposcope/ directory and
provides default values for "reposcope serve" and the client commands.
CLI flags and REPOSCOPE_ environment variables take precedence over config
file values.

Keys use dotted notation matching the TOML section structure, e.g.
  storage.driver, api.listen, client.api_target,
  vector_store.provider, embedding.model, synthesis.provider,
  retrieval.top_k, ingest.workers, github.token

Use subcommands to get, set, or list configuration values:
  reposcope config set <key> <value>    Set a configuration value
  reposcope config get <key>            Get a configuration value
  reposcope config list                 List all configuration values

Examples:
  reposcope config set synthesis.provider openai
  reposcope config set retrieval.top_k 5
  reposcope config get embedding.model
  reposcope config list`

const configShortDesc string = "Manage persistent reposcope configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// openConfig resolves the config file and prints which one is in use.
func openConfig(cmd *cobra.Command) (*config.Configer, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	out := cmd.OutOrStdout()
	if target := cfger.Path(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	return cfger, nil
}
