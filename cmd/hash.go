package cmd

import (
	"fmt"
	"os"

	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Print the perceptual hash of image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashes := make([]string, len(args))

		g, _ := errgroup.WithContext(cmd.Context())
		g.SetLimit(cfg.Image.MaxConcurrent)
		for i, path := range args {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				h, err := service.GenerateImageHash(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				hashes[i] = h
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, path := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hashes[i], path)
		}
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <hash1> <hash2>",
	Short: "Print the similarity percentage of two hashes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		similarity := service.CompareHashes(args[0], args[1])
		duplicate := ""
		if similarity > cfg.Image.DuplicateThreshold {
			duplicate = " (possible duplicate)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.2f%%%s\n", similarity, duplicate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd, compareCmd)
}
