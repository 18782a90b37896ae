// Reposcope CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/reposcope/internal/dagger"
)

// Reposcope is the main module for the reposcope CI/CD pipeline
type Reposcope struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Reposcope CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".reposcope", "_examples"]
	source *dagger.Directory,
) *Reposcope {
	return &Reposcope{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc, git,
// libsqlite3-dev, CGO enabled, and the project source mounted.
//
// The sqlite storage and sqlite-vec drivers need CGO; the local source
// tests need git.
func (r *Reposcope) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "git", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("GOEXPERIMENT", "jsonv2").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", r.Source)
}

// Test runs the reposcope unit tests via "go test"
func (r *Reposcope) Test(ctx context.Context) (string, error) {
	return r.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
