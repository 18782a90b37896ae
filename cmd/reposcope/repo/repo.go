// Package repocmder provides the repo command for registering and managing
// repositories on a running reposcope API server.
package repocmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/client"
	"github.com/papercomputeco/reposcope/pkg/config"
)

const repoLongDesc string = `Manage repositories on a running reposcope API server.

Use subcommands to add, inspect, re-ingest, or remove repositories:
  reposcope repo add <github-url|path>   Register and ingest a repository
  reposcope repo list                    List repositories and their status
  reposcope repo show <id>               Show a repository with files and commits
  reposcope repo reingest <id>           Queue a fresh ingestion
  reposcope repo rm <id>                 Remove a repository and its index`

const repoShortDesc string = "Manage indexed repositories"

// repoCommander holds what every repo subcommand needs.
type repoCommander struct {
	apiTarget string
	out       io.Writer
}

func NewRepoCmd() *cobra.Command {
	cmder := &repoCommander{}

	cmd := &cobra.Command{
		Use:   "repo",
		Short: repoShortDesc,
		Long:  repoLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			if cmd.Flags().Changed("api-target") {
				return nil
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.apiTarget = cfg.Client.APITarget
			return nil
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.PersistentFlags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "reposcope API server URL")

	cmd.AddCommand(newAddCmd(cmder))
	cmd.AddCommand(newListCmd(cmder))
	cmd.AddCommand(newShowCmd(cmder))
	cmd.AddCommand(newReingestCmd(cmder))
	cmd.AddCommand(newRmCmd(cmder))

	return cmd
}

func (c *repoCommander) client() (*client.Client, error) {
	return client.New(c.apiTarget)
}

// isGitHubURL reports whether ref names a repository on GitHub rather than a
// local directory.
func isGitHubURL(ref string) bool {
	ref = strings.ToLower(ref)
	return strings.HasPrefix(ref, "https://github.com/") ||
		strings.HasPrefix(ref, "http://github.com/") ||
		strings.HasPrefix(ref, "github.com/") ||
		strings.HasPrefix(ref, "git@github.com:")
}
