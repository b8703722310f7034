// Package version exposes the build identity of the binary: a release
// version injected at build time, falling back to the vcs revision baked
// into the build info.
package version

import "runtime/debug"

// Version is empty unless set at build time, e.g.
//
//	go build -ldflags "-X github.com/mitchellfyi/lofield/version.Version=$(git describe --dirty)"
var Version string

// VersionOrHash is Version when one was injected, otherwise the short vcs
// revision, with a -dirty suffix when the worktree had local changes. Empty
// for builds without vcs stamping.
var VersionOrHash = resolve()

func resolve() string {
	if Version != "" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}
	return revision
}
