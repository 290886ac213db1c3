package cli

import (
	"fmt"

	"github.com/caarlos0/ctrlc"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ttsgate/internal/config"
	"ttsgate/internal/piper"
)

var installVoices []string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the Piper binary and voice models",
	Long: `Downloads the Piper release for this platform and the configured
voice models into the data directory. Already-present files are skipped,
so re-running after a partial download is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Engine.Backend != config.BackendPiper {
			return fmt.Errorf("engine backend is %q; install only applies to the piper backend", cfg.Engine.Backend)
		}

		voices := installVoices
		if len(voices) == 0 {
			voices = []string{cfg.Engine.DefaultVoice}
		}
		for _, v := range voices {
			if !piper.KnownVoice(v) {
				return fmt.Errorf("unknown voice %q; run `ttsgate voices` for the catalog", v)
			}
		}

		installer := piper.NewInstaller(piper.Config{
			BinaryPath: cfg.Piper.BinaryPath,
			ModelDir:   cfg.Piper.ModelDir,
		})

		return ctrlc.Default.Run(cmd.Context(), func() error {
			if err := installer.EnsureBinary(cmd.Context()); err != nil {
				return fmt.Errorf("failed to install piper: %w", err)
			}
			for _, v := range voices {
				if err := installer.EnsureVoice(cmd.Context(), v); err != nil {
					return fmt.Errorf("failed to install voice %s: %w", v, err)
				}
			}
			log.Info("install complete", "voices", voices)
			return nil
		})
	},
}

func init() {
	installCmd.Flags().StringSliceVar(&installVoices, "voice", nil, "voice model(s) to install (default: the configured default voice)")
	rootCmd.AddCommand(installCmd)
}
