// Package version carries build metadata.
//
// Release builds inject the variables with ldflags, for example:
//
//	go build -ldflags "-X roomcast/internal/version.Version=1.2.0"
//
// A plain `go build` keeps Version at "dev" and fills Commit and
// BuildTime from the module's VCS stamp when one is present.
package version

import "runtime/debug"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func init() {
	if Commit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 12 {
				Commit = s.Value[:12]
			} else if s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if s.Value != "" {
				BuildTime = s.Value
			}
		}
	}
}

// String renders the one-line form printed by the -version flag.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
