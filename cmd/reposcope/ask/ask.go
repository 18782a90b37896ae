// Package askcmder provides the ask command, which streams an answer about a
// repository from a running reposcope API server.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/client"
	"github.com/papercomputeco/reposcope/pkg/config"
	"github.com/papercomputeco/reposcope/pkg/stream"
)

const askLongDesc string = `Ask a question about an indexed repository.

The answer is streamed token by token as the server produces it, followed by
the files it was grounded on and a confidence score. The question and answer
are recorded in the repository's query history.

With --render the answer is rendered as markdown once complete instead of
streamed raw. Rendering is skipped when stdout is not a terminal.

Examples:
  reposcope ask 6f1c... "How is authentication handled?"
  reposcope ask 6f1c... where are rate limits configured --render
  reposcope ask 6f1c... "What does main do?" --no-stream`

const askShortDesc string = "Ask a question about a repository"

type askCommander struct {
	apiTarget string
	render    bool
	noStream  bool

	out io.Writer

	// isTerminal reports whether out is a terminal; replaced in tests.
	isTerminal func() bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{
		isTerminal: func() bool { return cliui.IsTerminal(os.Stdout) },
	}

	cmd := &cobra.Command{
		Use:   "ask <repository-id> <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			return cmder.run(cmd.Context(), args[0], question)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "reposcope API server URL")
	cmd.Flags().BoolVarP(&cmder.render, "render", "r", false, "Render the answer as markdown when complete")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the whole answer instead of streaming it")

	return cmd
}

func (c *askCommander) run(ctx context.Context, repositoryID, question string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if question == "" {
		return errors.New("question required")
	}

	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	if c.noStream {
		q, err := cl.Query(ctx, repositoryID, question)
		if err != nil {
			return err
		}
		c.printAnswer(q.Answer)
		c.printFooter(q.Sources, q.Confidence)
		return nil
	}

	render := c.render && c.isTerminal()

	var answer strings.Builder
	var failure string
	fmt.Fprintln(c.out)

	err = cl.StreamQuery(ctx, repositoryID, question, func(e stream.Event) error {
		switch e.Type {
		case stream.EventToken:
			answer.WriteString(e.Chunk)
			if !render {
				_, err := io.WriteString(c.out, e.Chunk)
				return err
			}
		case stream.EventDone:
			if render {
				c.printAnswer(answer.String())
			} else {
				fmt.Fprintln(c.out)
			}
			c.printFooter(e.Sources, e.Confidence)
		case stream.EventError:
			failure = e.Message
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failure != "" {
		if answer.Len() > 0 {
			fmt.Fprintln(c.out)
		}
		return fmt.Errorf("answer failed: %s", failure)
	}
	return nil
}

func (c *askCommander) printAnswer(answer string) {
	if c.render && c.isTerminal() {
		rendered, err := cliui.RenderMarkdown(answer)
		if err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, answer)
}

func (c *askCommander) printFooter(sources []string, confidence float64) {
	fmt.Fprintln(c.out)
	if len(sources) > 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.KeyStyle.Render("Sources:"))
		for _, s := range sources {
			fmt.Fprintf(c.out, "    %s\n", cliui.ValueStyle.Render(s))
		}
	} else {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("No sources"))
	}
	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Confidence:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%.2f", confidence)),
	)
}
