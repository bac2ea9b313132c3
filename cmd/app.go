package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/repository"
	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
)

// app 组装好的服务依赖
type app struct {
	db        *sql.DB
	cache     *service.RedisService
	processor *service.ImageProcessor
	generator *service.ImageGenerator
	memes     *service.MemeService
}

// newApp 打开数据库并执行迁移，连接 Redis，按配置选择存储与注册方式
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	// 确保上传目录存在
	if cfg.Storage.Backend == config.StorageLocal {
		if err := os.MkdirAll(cfg.Upload.UploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	// Redis 不可用时关闭缓存，不影响启动
	var cache *service.RedisService
	redisService := service.NewRedisService(&cfg.Redis)
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		_ = redisService.Close()
	} else {
		utils.Logger.Info("redis connected successfully", zap.String("addr", cfg.Redis.Addr))
		cache = redisService
	}

	local := service.NewLocalStore(cfg.Upload.UploadDir, cfg.Upload.PublicBaseURL)
	ipfs := service.NewIPFSClient(&cfg.IPFS)
	store, err := service.NewFileStore(cfg.Storage.Backend, local, ipfs)
	if err != nil {
		db.Close()
		if cache != nil {
			_ = cache.Close()
		}
		return nil, err
	}

	registrar := service.NewRegistrar(&cfg.Story)
	if !registrar.Enabled() {
		utils.Logger.Warn("story relay not configured, memes will not be registered on chain")
	}

	generator := service.NewImageGenerator(&cfg.Generate)
	if !generator.Enabled() {
		utils.Logger.Warn("generate.api_key not set, image generation disabled")
	}

	processor := service.NewImageProcessor(cfg, cache)
	memes := service.NewMemeService(cfg, processor, store, registrar,
		repository.NewMemeRepository(db), repository.NewSocialRepository(db), cache)

	utils.Logger.Info("services initialized",
		zap.String("database", cfg.Database.Path),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("cache", cache != nil),
		zap.Bool("registration", registrar.Enabled()),
		zap.Bool("generation", generator.Enabled()))

	return &app{db: db, cache: cache, processor: processor, generator: generator, memes: memes}, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := a.db.Close(); err != nil {
		utils.Logger.Warn("failed to close database", zap.Error(err))
	}
}
