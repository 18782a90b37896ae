package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key with its current value from the config.toml
file stored in the .reposcope/ directory, falling back to defaults.

Examples:
  reposcope config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cfger, err := openConfig(cmd)
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}

	out := cmd.OutOrStdout()
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		name := cliui.PadRight(cliui.KeyStyle.Render(key), maxLen)
		if value == "" {
			fmt.Fprintf(out, "  %s  %s\n", name, cliui.DimStyle.Render("<not set>"))
		} else {
			fmt.Fprintf(out, "  %s  %s\n", name, cliui.ValueStyle.Render(value))
		}
	}
	fmt.Fprintln(out)

	return nil
}
