package service

import (
	"os"
	"strings"
)

// buildServicePath builds the PATH baked into generated unit files: a
// deterministic system baseline first, then whatever the installing shell
// had, so a piper binary on a custom PATH keeps resolving under the
// supervisor.
func buildServicePath(installerPath string) string {
	paths := make([]string, 0, 16)

	for _, p := range []string{
		"/usr/local/bin",
		"/usr/bin",
		"/bin",
		"/usr/local/sbin",
		"/usr/sbin",
		"/sbin",
	} {
		paths = appendUniquePath(paths, p)
	}

	for _, p := range strings.Split(installerPath, string(os.PathListSeparator)) {
		paths = appendUniquePath(paths, p)
	}

	return strings.Join(paths, string(os.PathListSeparator))
}

func appendUniquePath(paths []string, path string) []string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return paths
	}
	for _, existing := range paths {
		if existing == trimmed {
			return paths
		}
	}
	return append(paths, trimmed)
}
