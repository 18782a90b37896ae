package repocmder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/client"
	"github.com/papercomputeco/reposcope/pkg/storage"
)

const addLongDesc string = `Register a repository and start ingesting it.

The reference is either a GitHub URL or a directory on the server's
filesystem. Relative paths are resolved against the current directory, which
is only meaningful when the server runs on this machine.

Use --wait to block until ingestion finishes.

Examples:
  reposcope repo add https://github.com/spf13/cobra
  reposcope repo add . --wait
  reposcope repo add local:/srv/checkouts/api`

const addShortDesc string = "Register and ingest a repository"

// pollInterval is how often --wait checks the repository status.
const pollInterval = time.Second

type addCommander struct {
	*repoCommander
	wait    bool
	timeout time.Duration
}

func newAddCmd(parent *repoCommander) *cobra.Command {
	cmder := &addCommander{repoCommander: parent}

	cmd := &cobra.Command{
		Use:   "add <github-url|path>",
		Short: addShortDesc,
		Long:  addLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.wait, "wait", false, "Wait until ingestion finishes")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 10*time.Minute, "Maximum time to wait with --wait")

	return cmd
}

func (c *addCommander) run(ctx context.Context, ref string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := c.client()
	if err != nil {
		return err
	}

	repoURL, path, err := splitRef(ref)
	if err != nil {
		return err
	}

	repo, err := cl.CreateRepository(ctx, repoURL, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Registered %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(repo.FullName),
		cliui.DimStyle.Render(repo.ID),
	)

	if !c.wait {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Ingestion runs in the background. Check progress with: reposcope repo show "+repo.ID))
		return nil
	}

	fmt.Fprintln(c.out)
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var final *storage.Repository
	err = cliui.Step(c.out, "Ingesting "+repo.FullName, func() error {
		final, err = waitReady(waitCtx, cl, repo.ID, pollInterval)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Files indexed:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%d", final.FileCount)),
	)
	return nil
}

// splitRef turns a CLI reference into the url or path field of the create
// request.
func splitRef(ref string) (string, string, error) {
	switch {
	case isGitHubURL(ref):
		return normalizeGitHubURL(ref), "", nil
	case strings.HasPrefix(ref, "local:"):
		return ref, "", nil
	default:
		abs, err := filepath.Abs(ref)
		if err != nil {
			return "", "", fmt.Errorf("resolving path: %w", err)
		}
		return "", abs, nil
	}
}

// normalizeGitHubURL rewrites the short, http and ssh spellings of a GitHub
// repository into the https form the server accepts.
func normalizeGitHubURL(ref string) string {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "git@github.com:"):
		return "https://github.com/" + strings.TrimSuffix(ref[len("git@github.com:"):], ".git")
	case strings.HasPrefix(lower, "http://"):
		return "https://" + ref[len("http://"):]
	case strings.HasPrefix(lower, "github.com/"):
		return "https://" + ref
	default:
		return ref
	}
}

// waitReady polls until the repository leaves the pending and processing
// states. An ingestion failure is returned as an error.
func waitReady(ctx context.Context, cl *client.Client, id string, every time.Duration) (*storage.Repository, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		detail, err := cl.GetRepository(ctx, id)
		if err != nil {
			return nil, err
		}

		switch detail.Repository.Status {
		case storage.StatusReady:
			return detail.Repository, nil
		case storage.StatusError:
			msg := detail.Repository.Error
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("ingestion failed: %s", msg)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.New("timed out waiting for ingestion")
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
