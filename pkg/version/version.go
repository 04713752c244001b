package version

import (
	"fmt"
	"runtime/debug"
)

var Version = func() string {
	commit := "unknown"
	at := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
			}
			if setting.Key == "vcs.time" {
				at = setting.Value
			}
		}
	}
	if at == "" {
		return commit
	}
	return fmt.Sprintf("%s (%s)", commit, at)
}()
