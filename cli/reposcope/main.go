package main

import (
	"os"

	reposcopecmder "github.com/papercomputeco/reposcope/cmd/reposcope"
)

func main() {
	cmd := reposcopecmder.NewReposcopeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
