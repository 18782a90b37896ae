package repocmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
)

const reingestShortDesc string = "Queue a fresh ingestion of a repository"

func newReingestCmd(parent *repoCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "reingest <id>",
		Short: reingestShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parent.runReingest(cmd.Context(), args[0])
		},
	}
}

func (c *repoCommander) runReingest(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := c.client()
	if err != nil {
		return err
	}

	repo, err := cl.Reingest(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Queued %s for re-ingestion\n", cliui.SuccessMark, cliui.NameStyle.Render(repo.FullName))
	return nil
}
