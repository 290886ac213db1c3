//go:build !darwin

package service

func newLaunchdManager(exePath string, runner commandRunner) Manager {
	_ = exePath
	_ = runner
	return newUnsupportedManager("launchd is only available on macOS")
}
