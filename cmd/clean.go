package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean-unregistered",
	Short: "Delete memes that were never registered on chain, and their files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.memes.CleanUnregistered(cmd.Context(), dryRun)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "found %d unregistered meme(s)\n", len(report.Memes))
		for _, m := range report.Memes {
			fmt.Fprintf(out, "  %s  %s\n", m.ID, m.Title)
		}
		if dryRun {
			fmt.Fprintln(out, "dry run, nothing deleted")
			return nil
		}
		fmt.Fprintf(out, "deleted %d meme(s), %d file(s), %d file error(s)\n",
			report.Deleted, report.FilesDeleted, report.FilesFailed)
		return nil
	},
}

func init() {
	cleanCmd.Flags().Bool("dry-run", false, "only list what would be deleted")
	rootCmd.AddCommand(cleanCmd)
}
