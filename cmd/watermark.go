package cmd

import (
	"fmt"
	"os"

	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/spf13/cobra"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark <in> <out>",
	Short: "Write a watermarked PNG copy of an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		if text == "" {
			text = cfg.Image.WatermarkText
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		out, err := service.AddWatermark(data, text)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], out, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[1], len(out))
		return nil
	},
}

func init() {
	watermarkCmd.Flags().StringP("text", "t", "", "watermark text, defaults to image.watermark_text")
	rootCmd.AddCommand(watermarkCmd)
}
