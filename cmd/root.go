package cmd

import (
	"fmt"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/handler"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigFile = "config.yaml"

var (
	configFile string
	cfg        *config.Config
	build      handler.BuildInfo
)

var rootCmd = &cobra.Command{
	Use:   "meme-ip-vault",
	Short: "Register memes as IP with perceptual hashing and watermarks",
	Long: `Meme IP Vault stores meme images with a perceptual fingerprint, a watermarked
copy and optional Story Protocol registration, and warns about near-duplicates.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := utils.InitLogger(cfg.Server.Mode, cfg.Log.Level, cfg.Log.Encoding); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cfg.Source == "" {
			utils.Logger.Warn("config file not found, using defaults and environment",
				zap.String("path", configFile))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utils.Sync()
	},
}

// loadConfig 显式指定 --config 时文件必须存在，否则缺少文件时只用默认值与环境变量
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	load := config.New
	if cmd.Flags().Changed("config") {
		load = config.Load
	}
	c, err := load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configFile, err)
	}
	return c, nil
}

// Execute 执行命令行
func Execute(info handler.BuildInfo) error {
	build = info
	rootCmd.Version = info.Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "config file (yaml)")
}
