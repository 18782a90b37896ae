package repocmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/storage"
)

const listShortDesc string = "List repositories and their status"

// nameWidth caps the repository name column.
const nameWidth = 40

func newListCmd(parent *repoCommander) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   listShortDesc,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return parent.runList(cmd.Context(), quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only repository ids, one per line")

	return cmd
}

func (c *repoCommander) runList(ctx context.Context, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := c.client()
	if err != nil {
		return err
	}

	repos, err := cl.ListRepositories(ctx)
	if err != nil {
		return err
	}

	if quiet {
		for _, r := range repos {
			fmt.Fprintln(c.out, r.ID)
		}
		return nil
	}

	if len(repos) == 0 {
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("No repositories yet. Add one with: reposcope repo add <github-url|path>"))
		return nil
	}

	fmt.Fprintln(c.out)
	for _, r := range repos {
		printRepoLine(c, r)
	}
	fmt.Fprintln(c.out)
	return nil
}

func printRepoLine(c *repoCommander, r *storage.Repository) {
	name := cliui.PadRight(cliui.Truncate(cliui.NameStyle.Render(r.FullName), nameWidth), nameWidth)
	status := cliui.PadRight(cliui.StatusStyle(string(r.Status)).Render(string(r.Status)), 10)

	fmt.Fprintf(c.out, "  %s  %s  %s  %s\n",
		name,
		status,
		cliui.DimStyle.Render(fmt.Sprintf("%5d files", r.FileCount)),
		cliui.DimStyle.Render(r.ID),
	)
}
