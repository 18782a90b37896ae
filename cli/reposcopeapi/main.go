package main

import (
	"os"

	servecmder "github.com/papercomputeco/reposcope/cmd/reposcope/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "reposcopeapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .reposcope/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
