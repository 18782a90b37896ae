package repocmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
)

const rmShortDesc string = "Remove a repository and its indexed content"

func newRmCmd(parent *repoCommander) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   rmShortDesc,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parent.runRm(cmd.Context(), args[0])
		},
	}
}

func (c *repoCommander) runRm(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := c.client()
	if err != nil {
		return err
	}

	if err := cl.DeleteRepository(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Removed %s\n", cliui.SuccessMark, cliui.DimStyle.Render(id))
	return nil
}
