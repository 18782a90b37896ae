package repocmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/utils"
)

const showShortDesc string = "Show a repository with its files and commits"

// maxListed bounds the files and commits printed by show.
const maxListed = 10

func newShowCmd(parent *repoCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: showShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parent.runShow(cmd.Context(), args[0])
		},
	}
}

func (c *repoCommander) runShow(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := c.client()
	if err != nil {
		return err
	}

	detail, err := cl.GetRepository(ctx, id)
	if err != nil {
		return err
	}
	r := detail.Repository

	kv := func(key, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(cliui.PadRight(key+":", 14)), cliui.ValueStyle.Render(value))
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.NameStyle.Render(r.FullName))
	kv("ID", r.ID)
	kv("Source", string(r.Source))
	kv("URL", r.URL)
	kv("Path", r.Path)
	kv("Language", r.Language)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(cliui.PadRight("Status:", 14)), cliui.StatusStyle(string(r.Status)).Render(string(r.Status)))
	kv("Error", r.Error)
	kv("Files", fmt.Sprintf("%d", r.FileCount))
	if r.LastAnalyzed != nil {
		kv("Analyzed", r.LastAnalyzed.Local().Format("2006-01-02 15:04"))
	}
	if r.Summary != "" {
		fmt.Fprintf(c.out, "\n  %s\n", cliui.StepStyle.Render(utils.Truncate(r.Summary, 400)))
	}

	if len(detail.Files) > 0 {
		fmt.Fprintf(c.out, "\n  %s\n", cliui.HeaderStyle.Render(fmt.Sprintf("Files (%d)", len(detail.Files))))
		for i, f := range detail.Files {
			if i == maxListed {
				fmt.Fprintf(c.out, "    %s\n", cliui.DimStyle.Render(fmt.Sprintf("… %d more", len(detail.Files)-maxListed)))
				break
			}
			fmt.Fprintf(c.out, "    %s %s\n", f.Path, cliui.DimStyle.Render(f.Language))
		}
	}

	if len(detail.Commits) > 0 {
		fmt.Fprintf(c.out, "\n  %s\n", cliui.HeaderStyle.Render("Recent commits"))
		for i, cm := range detail.Commits {
			if i == maxListed {
				break
			}
			sha := cm.SHA
			if len(sha) > 7 {
				sha = sha[:7]
			}
			msg := cm.Summary
			if msg == "" {
				msg = cm.Message
			}
			fmt.Fprintf(c.out, "    %s %s\n", cliui.DimStyle.Render(sha), cliui.Truncate(firstLine(msg), 72))
		}
	}

	fmt.Fprintln(c.out)
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
