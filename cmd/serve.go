package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/handler"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Server.Port = port
		}

		utils.Logger.Info("starting meme-ip-vault server",
			zap.String("version", build.Version),
			zap.String("build_time", build.BuildTime),
			zap.String("git_commit", build.GitCommit),
			zap.String("git_branch", build.GitBranch))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		// 设置Gin模式
		gin.SetMode(cfg.Server.Mode)
		router := handler.NewRouter(cfg,
			handler.NewMemeHandler(cfg, a.memes),
			handler.NewToolHandler(cfg, a.processor, a.generator),
			build)

		srv := &http.Server{
			Addr:         cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		utils.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "listen address, overrides server.port")
	rootCmd.AddCommand(serveCmd)
}
