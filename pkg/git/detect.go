// Package git reads repository information from a local git checkout by
// shelling out to the git binary.
package git

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotRepository is returned when a directory is not the top level of a
// git checkout, or git is not installed.
var ErrNotRepository = errors.New("not a git repository")

// commandTimeout bounds every git invocation.
const commandTimeout = 10 * time.Second

// TopLevel returns the root of the checkout containing dir.
func TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	top := strings.TrimSpace(out)
	if top == "" {
		return "", ErrNotRepository
	}
	return top, nil
}

// IsRoot reports whether dir is itself the top level of a checkout. A
// directory nested inside some other repository is not a root.
func IsRoot(ctx context.Context, dir string) bool {
	top, err := TopLevel(ctx, dir)
	if err != nil {
		return false
	}
	return samePath(top, dir)
}

// RepoName returns the base name of the checkout containing dir, falling back
// to the base name of dir itself.
func RepoName(ctx context.Context, dir string) string {
	if top, err := TopLevel(ctx, dir); err == nil {
		return filepath.Base(top)
	}
	return filepath.Base(dir)
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", ErrNotRepository
	}
	return string(out), nil
}

func samePath(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		ra = a
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		rb = b
	}
	return filepath.Clean(ra) == filepath.Clean(rb)
}
