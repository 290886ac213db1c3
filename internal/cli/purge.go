package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ttsgate/internal/store"
)

var purgeAll bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete clips older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Store.ClipDir, cfg.RetentionWindow())
		if err != nil {
			return err
		}
		defer st.Close()

		purge := st.Purge
		if purgeAll {
			purge = st.PurgeAll
		}
		removed, err := purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d clip(s)\n", removed)
		return nil
	},
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeAll, "all", false, "delete every clip regardless of age")
	rootCmd.AddCommand(purgeCmd)
}
