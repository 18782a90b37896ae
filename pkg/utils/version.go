// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "runtime/debug"

// Set through -ldflags by release builds.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo returns the version, commit and build time of the running
// binary. Values not stamped through -ldflags fall back to what the Go
// toolchain recorded, which covers "go install" builds.
func BuildInfo() (version, sha, buildtime string) {
	version, sha, buildtime = Version, Sha, Buildtime

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && sha == "HEAD":
			sha = s.Value
		case s.Key == "vcs.time" && buildtime == "dev":
			buildtime = s.Value
		}
	}
	return
}
