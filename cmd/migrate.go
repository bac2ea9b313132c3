package cmd

import (
	"fmt"

	"github.com/diyapandey-1623/meme-ip-vault/repository"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or revert database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		db, err := repository.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		if direction == "down" {
			err = repository.MigrateDown(cmd.Context(), db)
		} else {
			err = repository.Migrate(cmd.Context(), db)
		}
		if err != nil {
			return err
		}

		version, dirty, err := repository.SchemaVersion(db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %s: version %d (dirty=%t)\n", direction, version, dirty)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
