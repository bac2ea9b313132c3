package handler

import (
	"net/http"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/middleware"
	"github.com/gin-gonic/gin"
)

// BuildInfo 编译时注入的版本信息
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
	GitBranch string
}

// NewRouter 创建路由
func NewRouter(cfg *config.Config, memes *MemeHandler, tools *ToolHandler, build BuildInfo) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize + 1<<20

	// 本地存储的图片
	if cfg.Storage.Backend == config.StorageLocal {
		r.Static("/uploads", cfg.Upload.UploadDir)
	}

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		n, err := memes.memeService.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"version": build.Version,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": build.Version,
			"memes":   n,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    build.Version,
			"build_time": build.BuildTime,
			"git_commit": build.GitCommit,
			"git_branch": build.GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/memes", memes.Upload)
		api.GET("/memes", memes.List)
		api.GET("/memes/:id", memes.Get)
		api.PUT("/memes/:id", memes.Update)
		api.DELETE("/memes/:id", memes.Delete)
		api.GET("/marketplace", memes.Marketplace)

		api.POST("/memes/:id/like", memes.Like)
		api.GET("/memes/:id/like", memes.LikeStatus)
		api.POST("/memes/:id/rate", memes.Rate)
		api.GET("/memes/:id/rate", memes.RatingStatus)
		api.GET("/memes/:id/meta", memes.Meta)
		api.POST("/memes/:id/links", memes.AddLink)
		api.GET("/memes/:id/links", memes.ListLinks)
		api.POST("/memes/:id/verify", memes.Verify)

		api.POST("/hash", tools.Hash)
		api.POST("/compare", tools.Compare)
		api.POST("/watermark", tools.Watermark)
		api.POST("/generate", tools.Generate)
	}

	return r
}
