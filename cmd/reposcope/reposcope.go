// Package reposcopecmder is the root reposcope command.
package reposcopecmder

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/reposcope/cmd/reposcope/ask"
	configcmder "github.com/papercomputeco/reposcope/cmd/reposcope/config"
	initcmder "github.com/papercomputeco/reposcope/cmd/reposcope/init"
	repocmder "github.com/papercomputeco/reposcope/cmd/reposcope/repo"
	searchcmder "github.com/papercomputeco/reposcope/cmd/reposcope/search"
	servecmder "github.com/papercomputeco/reposcope/cmd/reposcope/serve"
	versioncmder "github.com/papercomputeco/reposcope/cmd/version"
)

const reposcopeLongDesc string = `reposcope indexes code repositories and answers questions about them.

Run the server, register repositories, then ask away:
  reposcope serve                                    Run the API server
  reposcope repo add https://github.com/owner/name   Index a GitHub repository
  reposcope repo add ./path/to/project               Index a local directory
  reposcope ask <repository-id> "how is auth done?"  Stream an answer
  reposcope search "rate limiting"                   Search indexed code

Environment variables are read from a .env file in the working directory
when one exists.`

const reposcopeShortDesc string = "reposcope - ask questions about your code"

func NewReposcopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reposcope",
		Short:         reposcopeShortDesc,
		Long:          reposcopeLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is the common case.
			_ = godotenv.Load()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .reposcope/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(repocmder.NewRepoCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
