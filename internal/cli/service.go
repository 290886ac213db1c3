package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ttsgate/internal/service"
)

var (
	logsFollow bool
	logsLines  int
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the background server service",
	Long: `Installs and controls ttsgate as a supervised background service:
a systemd user unit on Linux, a launchd agent on macOS. The supervisor
restarts the server if it crashes and starts it at login.`,
}

func newServiceManager() (service.Manager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return service.NewManager(exe)
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and enable the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		if err := m.Install(); err != nil {
			return err
		}
		if err := m.Start(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "service installed and started (%s)\n", m.Backend())
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		if err := m.Uninstall(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "service removed")
		return nil
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		return m.Start()
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		return m.Stop()
	},
}

var serviceRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		return m.Restart()
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		st, err := m.Status()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:   %s\n", st.Backend)
		fmt.Fprintf(out, "installed: %v\n", st.Installed)
		fmt.Fprintf(out, "running:   %v\n", st.Running)
		fmt.Fprintf(out, "enabled:   %v\n", st.Enabled)
		if st.Detail != "" {
			fmt.Fprintf(out, "detail:    %s\n", st.Detail)
		}
		return nil
	},
}

var serviceLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show service logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager()
		if err != nil {
			return err
		}
		if logsFollow {
			return m.LogsFollow(cmd.Context(), logsLines, cmd.OutOrStdout())
		}
		out, err := m.Logs(logsLines)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	serviceLogsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream new log output")
	serviceLogsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "number of log lines to show")

	serviceCmd.AddCommand(
		serviceInstallCmd,
		serviceUninstallCmd,
		serviceStartCmd,
		serviceStopCmd,
		serviceRestartCmd,
		serviceStatusCmd,
		serviceLogsCmd,
	)
	rootCmd.AddCommand(serviceCmd)
}
