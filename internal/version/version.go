// Package version reports build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/renqiukai/wzbank-go/internal/version.version=v1.2.0 \
//	  -X github.com/renqiukai/wzbank-go/internal/version.buildDate=2025-12-02T11:06:08Z \
//	  -X github.com/renqiukai/wzbank-go/internal/version.gitCommit=abc1234"
package version

import "runtime/debug"

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
}

// Get returns the build information. Without ldflags the module version and VCS
// revision recorded by the Go toolchain are used when available.
func Get() Info {
	info := Info{Version: version, BuildDate: buildDate, GitCommit: gitCommit}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && s.Value != "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" && s.Value != "" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}
