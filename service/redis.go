package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	hashKeyPrefix = "phash:"
	memeKeyPrefix = "meme:"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetHashResult 按内容MD5获取指纹缓存，未命中返回 nil, nil
func (s *RedisService) GetHashResult(ctx context.Context, md5 string) (*model.HashResult, error) {
	var result model.HashResult
	ok, err := s.getJSON(ctx, hashKeyPrefix+md5, &result)
	if err != nil || !ok {
		return nil, err
	}
	return &result, nil
}

// SetHashResult 缓存指纹；内容寻址，不需要失效
func (s *RedisService) SetHashResult(ctx context.Context, result *model.HashResult) error {
	return s.setJSON(ctx, hashKeyPrefix+result.MD5, result)
}

// GetMeme 获取表情包记录缓存
func (s *RedisService) GetMeme(ctx context.Context, id string) (*model.Meme, error) {
	var meme model.Meme
	ok, err := s.getJSON(ctx, memeKeyPrefix+id, &meme)
	if err != nil || !ok {
		return nil, err
	}
	return &meme, nil
}

// SetMeme 缓存表情包记录
func (s *RedisService) SetMeme(ctx context.Context, meme *model.Meme) error {
	return s.setJSON(ctx, memeKeyPrefix+meme.ID, meme)
}

// InvalidateMeme 记录变更后删除缓存
func (s *RedisService) InvalidateMeme(ctx context.Context, id string) error {
	return s.client.Del(ctx, memeKeyPrefix+id).Err()
}

func (s *RedisService) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // 缓存未命中
		}
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		utils.Logger.Error("failed to unmarshal cached value",
			zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

func (s *RedisService) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
