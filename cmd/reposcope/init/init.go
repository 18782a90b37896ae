// Package initcmder provides the init command for initializing a local
// .reposcope directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reposcope/pkg/cliui"
	"github.com/papercomputeco/reposcope/pkg/config"
)

const (
	dirName = ".reposcope"

	fetchTimeout = 15 * time.Second
)

const initLongDesc string = `Initialize a new .reposcope/ directory in the current working directory.

Creates a local .reposcope/ directory that takes precedence over the default
~/.reposcope/ directory for configuration, the SQLite database and logs, and
writes a config.toml when none exists.

Use --preset to start from a provider preset or a remote config.toml:
  ollama    Local Ollama embeddings and answers (default)
  openai    OpenAI embeddings and answers, key from OPENAI_API_KEY
  offline   Hashed local embeddings and a canned answerer, no network

A preset always overwrites an existing config.toml.

Examples:
  reposcope init
  reposcope init --preset offline
  reposcope init --preset https://example.com/reposcope/config.toml`

const initShortDesc string = "Initialize a local .reposcope/ directory"

type initCommander struct {
	preset string
	out    io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Preset name ("+strings.Join(config.ValidPresets(), ", ")+") or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	// Resolve the preset before touching the filesystem so a bad preset
	// leaves no trace.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = c.loadPreset(ctx)
		if err != nil {
			return err
		}
	}

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .reposcope directory: %w", err)
		}
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(cfger.Path())
	switch {
	case cfg != nil:
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %s Wrote %s preset to %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(c.preset), cliui.DimStyle.Render(cfger.Path()))
	case os.IsNotExist(statErr):
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %s Wrote default config to %s\n", cliui.SuccessMark, cliui.DimStyle.Render(cfger.Path()))
	}

	if existed {
		fmt.Fprintf(c.out, "  %s Already initialized: %s\n", cliui.SuccessMark, dir)
	} else {
		fmt.Fprintf(c.out, "  %s Initialized .reposcope directory: %s\n", cliui.SuccessMark, dir)
	}
	return nil
}

func (c *initCommander) loadPreset(ctx context.Context) (*config.Config, error) {
	if !strings.HasPrefix(c.preset, "http://") && !strings.HasPrefix(c.preset, "https://") {
		return config.PresetConfig(c.preset)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.preset, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
