// Package cli implements the ttsgate command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ttsgate/internal/config"
	"ttsgate/internal/coqui"
	"ttsgate/internal/piper"
	"ttsgate/internal/tts"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ttsgate",
	Short: "Self-hosted text to speech gateway",
	Long: `ttsgate runs a local speech synthesis server with a small HTTP API
and a web form. It drives either the Piper binary directly or a running
Coqui TTS server, stores generated clips for a retention window, and can
install itself as a background service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

func buildEngine(cfg *config.Config) tts.Engine {
	switch cfg.Engine.Backend {
	case config.BackendCoqui:
		return coqui.NewClient(cfg.Coqui.ServerURL, cfg.CoquiTimeout())
	default:
		return piper.NewEngine(piper.Config{
			BinaryPath: cfg.Piper.BinaryPath,
			ModelDir:   cfg.Piper.ModelDir,
		})
	}
}

func buildService(cfg *config.Config) *tts.Service {
	return tts.NewService(buildEngine(cfg), cfg.Engine.DefaultVoice, cfg.Engine.Speed)
}
