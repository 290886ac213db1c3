//go:build darwin

package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const launchdLabel = "io.ttsgate.server"

type launchdManager struct {
	runner    commandRunner
	exePath   string
	plistPath string
	logDir    string
}

func newLaunchdManager(exePath string, runner commandRunner) Manager {
	home, _ := os.UserHomeDir()
	return &launchdManager{
		runner:    runner,
		exePath:   exePath,
		plistPath: filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"),
		logDir:    filepath.Join(home, ".ttsgate"),
	}
}

func (m *launchdManager) Backend() string { return BackendLaunchd }

func (m *launchdManager) serviceTarget() string {
	return fmt.Sprintf("gui/%d/%s", os.Getuid(), launchdLabel)
}

func (m *launchdManager) domainTarget() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

func (m *launchdManager) stdoutPath() string { return filepath.Join(m.logDir, "server.log") }
func (m *launchdManager) stderrPath() string { return filepath.Join(m.logDir, "server.err.log") }

func (m *launchdManager) Install() error {
	if err := os.MkdirAll(filepath.Dir(m.plistPath), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(m.logDir, 0755); err != nil {
		return err
	}
	plist := renderLaunchdPlist(launchdLabel, m.exePath, m.stdoutPath(), m.stderrPath(), buildServicePath(os.Getenv("PATH")))
	if err := writeFileIfChanged(m.plistPath, []byte(plist), 0644); err != nil {
		return err
	}
	// bootstrap fails with EEXIST when the agent is already loaded; reload
	// instead so a changed plist takes effect.
	_, _ = runCommand(m.runner, 8*time.Second, "launchctl", "bootout", m.serviceTarget())
	if out, err := runCommand(m.runner, 8*time.Second, "launchctl", "bootstrap", m.domainTarget(), m.plistPath); err != nil {
		return fmt.Errorf("bootstrap failed: %s", commandErrorDetail(out, err))
	}
	return nil
}

func (m *launchdManager) Uninstall() error {
	_, _ = runCommand(m.runner, 8*time.Second, "launchctl", "bootout", m.serviceTarget())
	if err := os.Remove(m.plistPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *launchdManager) Start() error {
	if _, err := os.Stat(m.plistPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("service is not installed; run `ttsgate service install`")
		}
		return err
	}
	if out, err := runCommand(m.runner, 8*time.Second, "launchctl", "kickstart", m.serviceTarget()); err != nil {
		// kickstart needs the agent bootstrapped first, e.g. after reboot
		// with RunAtLoad disabled or a manual bootout.
		if out2, err2 := runCommand(m.runner, 8*time.Second, "launchctl", "bootstrap", m.domainTarget(), m.plistPath); err2 != nil {
			return fmt.Errorf("start failed: %s; bootstrap failed: %s", commandErrorDetail(out, err), commandErrorDetail(out2, err2))
		}
	}
	return nil
}

func (m *launchdManager) Stop() error {
	if out, err := runCommand(m.runner, 8*time.Second, "launchctl", "bootout", m.serviceTarget()); err != nil {
		msg := strings.ToLower(string(out))
		if strings.Contains(msg, "no such process") || strings.Contains(msg, "not find") {
			return nil
		}
		return fmt.Errorf("stop failed: %s", commandErrorDetail(out, err))
	}
	return nil
}

func (m *launchdManager) Restart() error {
	if out, err := runCommand(m.runner, 8*time.Second, "launchctl", "kickstart", "-k", m.serviceTarget()); err != nil {
		return fmt.Errorf("restart failed: %s", commandErrorDetail(out, err))
	}
	return nil
}

func (m *launchdManager) Status() (Status, error) {
	st := Status{Backend: BackendLaunchd}
	if _, err := os.Stat(m.plistPath); err == nil {
		st.Installed = true
		st.Enabled = true
	}

	out, err := runCommand(m.runner, 5*time.Second, "launchctl", "print", m.serviceTarget())
	if err == nil {
		st.Running = hasNonZeroPID(string(out))
	}

	if !st.Installed {
		st.Detail = "launch agent not installed"
	} else if !st.Running {
		st.Detail = "installed but not running"
	}
	return st, nil
}

func (m *launchdManager) Logs(lines int) (string, error) {
	if lines <= 0 {
		lines = 100
	}
	sections := []logSection{
		{Name: m.stdoutPath(), Content: tailFileLines(m.stdoutPath(), lines)},
		{Name: m.stderrPath(), Content: tailFileLines(m.stderrPath(), lines)},
	}
	combined := combineLogSections(sections)
	if combined == "" {
		return "", fmt.Errorf("no log output yet; is the service running?")
	}
	return combined, nil
}

func (m *launchdManager) LogsFollow(ctx context.Context, lines int, w io.Writer) error {
	if out, err := m.Logs(lines); err == nil {
		fmt.Fprint(w, out)
	}
	return followFiles(ctx, []string{m.stdoutPath(), m.stderrPath()}, w)
}

// hasNonZeroPID reports whether launchctl print output shows a live pid.
func hasNonZeroPID(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "pid =") {
			continue
		}
		pid := strings.TrimSpace(strings.TrimPrefix(line, "pid ="))
		if pid != "" && pid != "0" {
			return true
		}
	}
	return false
}

func commandErrorDetail(out []byte, err error) string {
	detail := oneLine(string(out))
	if detail == "" {
		detail = err.Error()
	}
	return detail
}
