package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/ctrlc"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/spf13/cobra"
)

var (
	sayVoice  string
	sayOutput string
	saySpeed  float32
)

var sayCmd = &cobra.Command{
	Use:   "say [text...]",
	Short: "Synthesize text and play it or save it to a file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return errors.New("nothing to say")
		}

		svc := buildService(cfg)
		audioData, err := svc.Synthesize(cmd.Context(), text, sayVoice, saySpeed)
		if err != nil {
			return err
		}

		if sayOutput != "" {
			if err := os.WriteFile(sayOutput, audioData, 0644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sayOutput)
			return nil
		}

		return ctrlc.Default.Run(cmd.Context(), func() error {
			return playWAV(audioData)
		})
	},
}

func playWAV(data []byte) error {
	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

func init() {
	sayCmd.Flags().StringVar(&sayVoice, "voice", "", "voice to use (default: the configured default voice)")
	sayCmd.Flags().Float32Var(&saySpeed, "speed", 0, "speech speed multiplier (default: the configured speed)")
	sayCmd.Flags().StringVarP(&sayOutput, "output", "o", "", "write the WAV to this file instead of playing it")
	rootCmd.AddCommand(sayCmd)
}
