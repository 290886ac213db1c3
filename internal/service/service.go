// Package service installs and controls the ttsgate API server as a
// supervised background service: a systemd user unit on Linux, a launchd
// agent on macOS. The supervisor restarts the server on crash; ttsgate
// itself never reimplements process supervision.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const (
	BackendSystemdUser = "systemd-user"
	BackendLaunchd     = "launchd"
	BackendUnsupported = "unsupported"
)

// Status captures installation and runtime state of the server service.
type Status struct {
	Backend   string
	Installed bool
	Running   bool
	Enabled   bool
	Detail    string
}

// Manager controls the background server service for the current platform.
type Manager interface {
	Backend() string
	Install() error
	Uninstall() error
	Start() error
	Stop() error
	Restart() error
	Status() (Status, error)
	Logs(lines int) (string, error)
	// LogsFollow streams log output to w until ctx is done, like tail -f.
	LogsFollow(ctx context.Context, lines int, w io.Writer) error
}

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osCommandRunner struct{}

func (osCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NewManager picks the supervisor backend for this platform. exePath is
// the ttsgate binary the unit will execute.
func NewManager(exePath string) (Manager, error) {
	exePath = strings.TrimSpace(exePath)
	if exePath == "" {
		return nil, errors.New("executable path is empty")
	}

	runner := osCommandRunner{}
	switch runtime.GOOS {
	case "darwin":
		return newLaunchdManager(exePath, runner), nil
	case "linux":
		if !isSystemdUserAvailable(runner) {
			if detectWSL() {
				return newUnsupportedManager("WSL detected but the systemd user manager is not active; enable systemd in /etc/wsl.conf or run `ttsgate serve` in a terminal"), nil
			}
			return newUnsupportedManager("systemd user manager is not available; run `ttsgate serve` in a terminal"), nil
		}
		return newSystemdUserManager(exePath, runner), nil
	default:
		return newUnsupportedManager(fmt.Sprintf("%s is not supported for service management", runtime.GOOS)), nil
	}
}

func isSystemdUserAvailable(runner commandRunner) bool {
	if _, err := exec.LookPath("systemctl"); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := runner.Run(ctx, "systemctl", "--user", "show-environment")
	return err == nil
}

func runCommand(runner commandRunner, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := runner.Run(ctx, name, args...)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%s %s timed out", name, strings.Join(args, " "))
	}
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

func writeFileIfChanged(path string, content []byte, perm os.FileMode) error {
	if existing, err := os.ReadFile(path); err == nil && string(existing) == string(content) {
		return nil
	}
	return os.WriteFile(path, content, perm)
}

func oneLine(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "\r", " "))
	if len(s) > 220 {
		return s[:220] + "..."
	}
	return s
}
