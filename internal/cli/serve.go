package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ttsgate/internal/coqui"
	"ttsgate/internal/server"
	"ttsgate/internal/store"
	"ttsgate/internal/tts"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the speech synthesis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine := buildEngine(cfg)
		if c, ok := engine.(*coqui.Client); ok {
			if !c.Probe(ctx) {
				log.Warn("coqui server is not reachable yet", "url", cfg.Coqui.ServerURL)
			}
		}
		svc := tts.NewService(engine, cfg.Engine.DefaultVoice, cfg.Engine.Speed)

		st, err := store.Open(cfg.Store.ClipDir, cfg.RetentionWindow())
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(cfg, svc, st, Version)

		log.Info("starting server",
			"addr", cfg.ListenAddr(),
			"engine", svc.EngineName(),
			"voice", svc.DefaultVoice(),
			"retention", cfg.Store.Retention)
		if !svc.Ready() {
			log.Warn("engine is not ready; synthesis requests will fail until it is",
				"engine", svc.EngineName())
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx)
		})
		g.Go(func() error {
			st.Janitor(gctx, cfg.PurgeInterval())
			return nil
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
