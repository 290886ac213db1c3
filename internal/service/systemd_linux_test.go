//go:build linux

package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	out := f.outputs[call]
	if f.fail[call] {
		return []byte(out), fmt.Errorf("exit status 1")
	}
	return []byte(out), nil
}

func newTestSystemdManager(t *testing.T, runner commandRunner) *systemdUserManager {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return newSystemdUserManager("/usr/local/bin/ttsgate", runner).(*systemdUserManager)
}

func TestSystemdInstall(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestSystemdManager(t, runner)

	require.NoError(t, m.Install())

	unit, err := os.ReadFile(m.unitPath)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart=/usr/local/bin/ttsgate serve")

	assert.Contains(t, runner.calls, "systemctl --user daemon-reload")
	assert.Contains(t, runner.calls, "systemctl --user enable ttsgate.service")
}

func TestSystemdStartRequiresInstall(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestSystemdManager(t, runner)

	err := m.Start()
	assert.ErrorContains(t, err, "not installed")
	assert.Empty(t, runner.calls)
}

func TestSystemdStatus(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"systemctl --user is-active ttsgate.service":  "active\n",
		"systemctl --user is-enabled ttsgate.service": "enabled\n",
	}}
	m := newTestSystemdManager(t, runner)
	require.NoError(t, os.MkdirAll(filepath.Dir(m.unitPath), 0755))
	require.NoError(t, os.WriteFile(m.unitPath, []byte("[Unit]\n"), 0644))

	st, err := m.Status()
	require.NoError(t, err)
	assert.True(t, st.Installed)
	assert.True(t, st.Running)
	assert.True(t, st.Enabled)
	assert.Empty(t, st.Detail)
}

func TestSystemdStatusNotRunning(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{
			"systemctl --user is-active ttsgate.service": "inactive\n",
		},
		fail: map[string]bool{
			"systemctl --user is-active ttsgate.service":  true,
			"systemctl --user is-enabled ttsgate.service": true,
		},
	}
	m := newTestSystemdManager(t, runner)

	st, err := m.Status()
	require.NoError(t, err)
	assert.False(t, st.Installed)
	assert.False(t, st.Running)
	assert.Equal(t, "unit file not installed", st.Detail)
}

func TestSystemdStopIgnoresMissingUnit(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{
			"systemctl --user stop ttsgate.service": "Failed to stop ttsgate.service: Unit ttsgate.service not loaded.",
		},
		fail: map[string]bool{
			"systemctl --user stop ttsgate.service": true,
		},
	}
	m := newTestSystemdManager(t, runner)

	assert.NoError(t, m.Stop())
}

func TestSystemdUninstallRemovesUnit(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestSystemdManager(t, runner)
	require.NoError(t, os.MkdirAll(filepath.Dir(m.unitPath), 0755))
	require.NoError(t, os.WriteFile(m.unitPath, []byte("[Unit]\n"), 0644))

	require.NoError(t, m.Uninstall())

	_, err := os.Stat(m.unitPath)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, runner.calls, "systemctl --user disable --now ttsgate.service")
}
