package version

import "runtime/debug"

// Version is set at build time with -ldflags "-X tailcast/internal/version.Version=...".
var Version = "dev"

// GitCommit is set at build time alongside Version.
var GitCommit = ""

// String describes the running build.
func String() string {
	if Version != "" && Version != "dev" {
		if GitCommit != "" {
			return "tailcast " + Version + " (" + GitCommit + ")"
		}
		return "tailcast " + Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return "tailcast " + info.Main.Version
	}
	return "tailcast dev"
}
