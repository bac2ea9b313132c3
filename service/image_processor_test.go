package service

import (
	"context"
	"testing"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, cache *RedisService) *ImageProcessor {
	t.Helper()
	cfg := config.Default()
	cfg.Upload.MaxSize = 1 << 20
	cfg.Image.MaxConcurrent = 2
	cfg.Image.QueueTimeout = 1
	return NewImageProcessor(cfg, cache)
}

func TestImageProcessor_Validate(t *testing.T) {
	p := newTestProcessor(t, nil)

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"png", "image/png", 1024, false},
		{"uppercase jpeg", "IMAGE/JPEG", 1024, false},
		{"at limit", "image/gif", 1 << 20, false},
		{"over limit", "image/png", 1<<20 + 1, true},
		{"empty", "image/png", 0, true},
		{"not an image", "application/pdf", 1024, true},
		{"missing type", "", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.contentType, tt.size)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestImageProcessor_HashUsesCache(t *testing.T) {
	cache, mr := newTestRedis(t)
	p := newTestProcessor(t, cache)
	ctx := context.Background()
	data := encodePNG(t, checkerboard(128))

	first, err := p.Hash(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "55aa55aa55aa55aa", first.Hash)
	assert.Equal(t, 128, first.Width)
	assert.Equal(t, 128, first.Height)
	assert.True(t, mr.Exists(hashKeyPrefix+utils.BytesMD5(data)))

	// 篡改缓存以确认第二次读的是缓存
	cached := *first
	cached.Hash = "ffffffffffffffff"
	require.NoError(t, cache.SetHashResult(ctx, &cached))

	second, err := p.Hash(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "ffffffffffffffff", second.Hash)
}

func TestImageProcessor_HashWithoutCache(t *testing.T) {
	p := newTestProcessor(t, nil)

	result, err := p.Hash(context.Background(), encodePNG(t, checkerboard(64)))
	require.NoError(t, err)
	assert.Len(t, result.Hash, HashLength)
	assert.NotEmpty(t, result.MD5)
}

func TestImageProcessor_CacheDownIsNotFatal(t *testing.T) {
	cache, mr := newTestRedis(t)
	p := newTestProcessor(t, cache)
	mr.Close()

	result, err := p.Hash(context.Background(), encodePNG(t, checkerboard(64)))
	require.NoError(t, err)
	assert.Equal(t, "55aa55aa55aa55aa", result.Hash)
}

func TestImageProcessor_QueueFull(t *testing.T) {
	p := newTestProcessor(t, nil)
	p.queueTimeout = 20 * time.Millisecond
	for i := 0; i < cap(p.semaphore); i++ {
		p.semaphore <- struct{}{}
	}

	_, err := p.Hash(context.Background(), encodePNG(t, checkerboard(64)))
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = p.Watermark(context.Background(), encodePNG(t, checkerboard(64)), "")
	assert.ErrorIs(t, err, ErrQueueFull)

	<-p.semaphore
	_, err = p.Hash(context.Background(), encodePNG(t, checkerboard(64)))
	assert.NoError(t, err)
}

func TestImageProcessor_Process(t *testing.T) {
	p := newTestProcessor(t, nil)
	data := encodePNG(t, checkerboard(256))

	result, err := p.Process(context.Background(), data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, utils.BytesMD5(data), result.MD5)
	assert.Equal(t, "55aa55aa55aa55aa", result.Hash)
	assert.Equal(t, data, result.Original)
	assert.NotEmpty(t, result.Watermarked)
	assert.Len(t, p.semaphore, 0, "slots released")

	img := decodePNG(t, result.Watermarked)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestImageProcessor_ProcessErrors(t *testing.T) {
	p := newTestProcessor(t, nil)
	ctx := context.Background()

	_, err := p.Process(ctx, encodePNG(t, checkerboard(64)), "text/plain")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.Process(ctx, []byte("not really a png"), "image/png")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestImageProcessor_PixelLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Image.MaxPixels = 32 * 32
	p := NewImageProcessor(cfg, nil)
	ctx := context.Background()

	small := encodePNG(t, checkerboard(32))
	_, err := p.Hash(ctx, small)
	require.NoError(t, err)

	large := encodePNG(t, checkerboard(64))
	_, err = p.Hash(ctx, large)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "pixel limit")

	_, err = p.Watermark(ctx, large, "")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = p.Process(ctx, large, "image/png")
	assert.ErrorIs(t, err, ErrDecode)

	// 头部声明的尺寸超限时不做完整解码
	_, err = p.Hash(ctx, inflatedPNG(t, 100000, 100000))
	assert.ErrorIs(t, err, ErrDecode)
}
