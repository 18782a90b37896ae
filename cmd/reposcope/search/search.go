// Package searchcmder provides the search command for semantic search over
// indexed repositories.
package searchcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	apisearch "github.com/papercomputeco/reposcope/api/search"
	"github.com/papercomputeco/reposcope/pkg/client"
	"github.com/papercomputeco/reposcope/pkg/config"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query        string
	repositoryID string
	topK         int
	quiet        bool

	apiTarget string

	debug  bool
	out    io.Writer
	logger *slog.Logger
}

const searchLongDesc string = `Search indexed code via the reposcope API.

Embeds the query and returns the most similar chunks, with their file path,
line range and similarity score. Requires a running reposcope API server.

Searches every indexed repository unless --repo scopes it to one.

Use --quiet to output only "path:start-end" locations, one per line.

Example:
  reposcope search "jwt validation"
  reposcope search "rate limiting" --repo 6f1c... --top 10
  reposcope search "database migrations" --quiet`

const searchShortDesc string = "Search indexed code"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
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
			cmder.query = strings.Join(args, " ")
			cmder.out = cmd.OutOrStdout()

			// debug is a persistent flag on the root command
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.repositoryID, "repo", "r", "", "Only search this repository id")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", int(defaults.Retrieval.TopK), "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only file locations, one per line (for piping)")
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "reposcope API server URL")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = reslog.New(reslog.WithDebug(c.debug), reslog.WithWriter(os.Stderr))

	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	c.logger.Debug("searching", "api_target", c.apiTarget, "query", c.query, "repository_id", c.repositoryID, "top_k", c.topK)

	output, err := cl.Search(ctx, c.query, c.repositoryID, c.topK)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Fprintln(c.out, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Fprintln(c.out, Location(result))
		}
		return nil
	}

	fmt.Fprintf(c.out, "\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		pathStyle.Render(fmt.Sprintf("%q", output.Query)),
	)
	for i, result := range output.Results {
		c.printResult(i+1, result)
	}
	return nil
}

func (c *searchCommander) printResult(rank int, result apisearch.SearchResult) {
	fmt.Fprintf(c.out, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		pathStyle.Render(Location(result)),
	)
	if result.Language != "" {
		fmt.Fprintf(c.out, "  %s\n", dimStyle.Render(result.Language))
	}

	for _, line := range strings.Split(strings.TrimRight(result.Preview, "\n"), "\n") {
		fmt.Fprintf(c.out, "    %s\n", previewStyle.Render(line))
	}
	fmt.Fprintln(c.out)
}

// Location formats a result as path:start-end. The line range is omitted when
// the server did not report one.
func Location(result apisearch.SearchResult) string {
	if result.StartLine <= 0 {
		return result.Path
	}
	if result.EndLine <= result.StartLine {
		return fmt.Sprintf("%s:%d", result.Path, result.StartLine)
	}
	return fmt.Sprintf("%s:%d-%d", result.Path, result.StartLine, result.EndLine)
}
