package service

import (
	"context"
	"fmt"
	"io"
)

type unsupportedManager struct {
	detail string
}

func newUnsupportedManager(detail string) Manager {
	return &unsupportedManager{detail: detail}
}

func (m *unsupportedManager) Backend() string { return BackendUnsupported }

func (m *unsupportedManager) err() error {
	return fmt.Errorf("service management unavailable: %s", m.detail)
}

func (m *unsupportedManager) Install() error   { return m.err() }
func (m *unsupportedManager) Uninstall() error { return m.err() }
func (m *unsupportedManager) Start() error     { return m.err() }
func (m *unsupportedManager) Stop() error      { return m.err() }
func (m *unsupportedManager) Restart() error   { return m.err() }

func (m *unsupportedManager) Status() (Status, error) {
	return Status{Backend: BackendUnsupported, Detail: m.detail}, nil
}

func (m *unsupportedManager) Logs(lines int) (string, error) {
	return "", m.err()
}

func (m *unsupportedManager) LogsFollow(ctx context.Context, lines int, w io.Writer) error {
	return m.err()
}
