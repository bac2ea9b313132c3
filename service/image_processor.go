package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
)

// ProcessedImage 一次上传的处理结果
type ProcessedImage struct {
	MD5         string
	Hash        string
	Width       int
	Height      int
	Original    []byte
	Watermarked []byte
}

// ImageProcessor 校验 -> 指纹 -> 水印，并发数受信号量限制
type ImageProcessor struct {
	maxSize       int64
	watermarkText string
	semaphore     chan struct{}
	queueTimeout  time.Duration
	maxPixels     int64
	cache         *RedisService
}

func NewImageProcessor(cfg *config.Config, cache *RedisService) *ImageProcessor {
	return &ImageProcessor{
		maxSize:       cfg.Upload.MaxSize,
		watermarkText: cfg.Image.WatermarkText,
		semaphore:     make(chan struct{}, cfg.Image.MaxConcurrent),
		queueTimeout:  time.Duration(cfg.Image.QueueTimeout) * time.Second,
		maxPixels:     cfg.Image.MaxPixels,
		cache:         cache,
	}
}

// Validate 检查声明的类型与大小
func (p *ImageProcessor) Validate(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return validationError("validate", "file must be an image, got %q", contentType)
	}
	if size <= 0 {
		return validationError("validate", "empty file")
	}
	if size > p.maxSize {
		return validationError("validate", "image size must be less than %d MB", p.maxSize/(1024*1024))
	}
	return nil
}

// acquire 等待处理名额，超时返回 ErrQueueFull
func (p *ImageProcessor) acquire(ctx context.Context) (func(), error) {
	release := func() { <-p.semaphore }

	select {
	case p.semaphore <- struct{}{}:
		return release, nil
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, p.queueTimeout)
	defer cancel()

	select {
	case p.semaphore <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, newError(KindQueueFull, "acquire", fmt.Errorf("processing queue is full, retry later"))
	}
}

// Hash 计算指纹，优先读取缓存
func (p *ImageProcessor) Hash(ctx context.Context, data []byte) (*model.HashResult, error) {
	md5 := utils.BytesMD5(data)

	if p.cache != nil {
		cached, err := p.cache.GetHashResult(ctx, md5)
		if err != nil {
			utils.Logger.Warn("failed to get hash cache", zap.Error(err))
		}
		if cached != nil {
			utils.Logger.Debug("hash cache hit", zap.String("md5", md5))
			return cached, nil
		}
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	img, _, err := decodeImage(data, p.maxPixels)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	result := &model.HashResult{
		MD5:    md5,
		Hash:   hashImage(img),
		Width:  b.Dx(),
		Height: b.Dy(),
	}

	if p.cache != nil {
		if err := p.cache.SetHashResult(ctx, result); err != nil {
			utils.Logger.Warn("failed to set hash cache", zap.Error(err))
		}
	}
	return result, nil
}

// Watermark 生成水印图，text 为空时使用配置中的文字
func (p *ImageProcessor) Watermark(ctx context.Context, data []byte, text string) ([]byte, error) {
	if text == "" {
		text = p.watermarkText
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return addWatermark(data, text, p.maxPixels)
}

// Caption 写入表情包上下文字
func (p *ImageProcessor) Caption(ctx context.Context, data []byte, top, bottom string) ([]byte, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return addCaption(data, top, bottom, p.maxPixels)
}

// Process 完整处理一次上传，任一步失败则整体失败
func (p *ImageProcessor) Process(ctx context.Context, data []byte, contentType string) (*ProcessedImage, error) {
	if err := p.Validate(contentType, int64(len(data))); err != nil {
		return nil, err
	}

	start := time.Now()

	hashed, err := p.Hash(ctx, data)
	if err != nil {
		return nil, err
	}

	watermarked, err := p.Watermark(ctx, data, "")
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("image processed",
		zap.String("md5", hashed.MD5),
		zap.String("hash", hashed.Hash),
		zap.Int("width", hashed.Width),
		zap.Int("height", hashed.Height),
		zap.Duration("duration", time.Since(start)))

	return &ProcessedImage{
		MD5:         hashed.MD5,
		Hash:        hashed.Hash,
		Width:       hashed.Width,
		Height:      hashed.Height,
		Original:    data,
		Watermarked: watermarked,
	}, nil
}
