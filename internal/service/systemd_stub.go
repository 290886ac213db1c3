//go:build !linux

package service

func newSystemdUserManager(exePath string, runner commandRunner) Manager {
	_ = exePath
	_ = runner
	return newUnsupportedManager("systemd is only available on Linux")
}
