package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	voiceNameStyle  = lipgloss.NewStyle().Bold(true)
	voiceMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	installedBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("installed")
	notInstalledTag = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("not installed")
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voices and their install state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc := buildService(cfg)
		for _, v := range svc.Voices() {
			badge := notInstalledTag
			if v.Installed {
				badge = installedBadge
			}
			def := ""
			if v.Name == svc.DefaultVoice() {
				def = " (default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s  %s  [%s]\n",
				voiceNameStyle.Render(v.Name),
				def,
				voiceMetaStyle.Render(fmt.Sprintf("%s / %s / %s", v.Language, v.Gender, v.Quality)),
				badge)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}
